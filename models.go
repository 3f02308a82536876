package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeviceType identifies the kind of client installation a refresh token is
// bound to.
type DeviceType string

const (
	DeviceTypeAndroid DeviceType = "android"
	DeviceTypeIOS     DeviceType = "ios"
	DeviceTypeOther   DeviceType = "other"
)

// ParseDeviceType maps a raw string onto a known device type.
func ParseDeviceType(raw string) (DeviceType, bool) {
	switch DeviceType(raw) {
	case DeviceTypeAndroid:
		return DeviceTypeAndroid, true
	case DeviceTypeIOS:
		return DeviceTypeIOS, true
	case DeviceTypeOther:
		return DeviceTypeOther, true
	default:
		return "", false
	}
}

// TokenStatus is the lifecycle state of an email verification token.
type TokenStatus string

const (
	// TokenStatusPending means the token was issued and awaits confirmation.
	TokenStatusPending TokenStatus = "pending"
	// TokenStatusConfirmed is terminal, the owning user verified their email.
	TokenStatusConfirmed TokenStatus = "confirmed"
	// TokenStatusExpired means the token outlived its TTL and must be
	// regenerated before the user can confirm.
	TokenStatusExpired TokenStatus = "expired"
)

var tokenStatusTransitions = map[TokenStatus]map[TokenStatus]struct{}{
	TokenStatusPending: {
		TokenStatusConfirmed: {},
		TokenStatusExpired:   {},
	},
	TokenStatusExpired: {
		TokenStatusPending: {},
	},
}

// CanTransitionTokenStatus reports whether the verification token lifecycle
// allows moving between the two states.
func CanTransitionTokenStatus(from, to TokenStatus) bool {
	if allowed, ok := tokenStatusTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"password_hash,omitempty"`
	EmailVerified bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	LoggedInAt    *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Device is one client installation owned by a user. A device holds at most
// one active refresh token at a time.
type Device struct {
	bun.BaseModel     `bun:"table:user_devices,alias:dev"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID            uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User              *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	DeviceID          string     `bun:"device_id,notnull" json:"device_id,omitempty"`
	DeviceType        DeviceType `bun:"device_type,notnull" json:"device_type,omitempty"`
	NotificationToken string     `bun:"notification_token" json:"notification_token,omitempty"`
	RefreshActive     bool       `bun:"is_refresh_active" json:"is_refresh_active,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RefreshToken is the long-lived storage-validated credential bound 1:1 to a
// device. Rotated or revoked rows stay behind with Active=false, their value
// never validates again.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	DeviceID      uuid.UUID  `bun:"device_id,notnull,type:uuid" json:"device_id,omitempty"`
	Device        *Device    `bun:"rel:belongs-to,join:device_id=id" json:"device,omitempty"`
	TokenValue    string     `bun:"token_value,notnull,unique" json:"token_value,omitempty"`
	Active        bool       `bun:"is_active" json:"is_active,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Expired reports whether the token is past its TTL, regardless of the
// active flag.
func (t *RefreshToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// EmailVerificationToken proves control of an email address. One logical slot
// per user: regeneration replaces the value and expiry in place.
type EmailVerificationToken struct {
	bun.BaseModel `bun:"table:email_verification_tokens,alias:evt"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID   `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User       `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	TokenValue    string      `bun:"token_value,notnull,unique" json:"token_value,omitempty"`
	Status        TokenStatus `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time   `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Expired reports whether the token is past its TTL.
func (t *EmailVerificationToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// NewTokenValue generates an opaque, unguessable token value.
func NewTokenValue() string {
	return uuid.New().String()
}
