package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// LoginRequest carries the credentials plus the device that is logging in.
type LoginRequest struct {
	Identifier string     `form:"identifier" json:"identifier"`
	Password   string     `form:"password" json:"password"`
	Device     DeviceInfo `json:"device"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
		validation.Field(&r.Device),
	)
}

// Validate will run validation rules
func (d DeviceInfo) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DeviceID, validation.Required, validation.Length(1, 200)),
		validation.Field(
			&d.DeviceType,
			validation.Required,
			validation.In(
				string(DeviceTypeAndroid),
				string(DeviceTypeIOS),
				string(DeviceTypeOther),
			),
		),
	)
}

// RefreshRequest presents the opaque refresh token value for rotation.
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.RefreshToken,
			validation.Required,
			is.UUID,
		),
	)
}

// TokenPair is the result of a successful login or refresh: a short-lived
// signed access token plus the opaque refresh token bound to the device.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}
