package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens issues, rotates, and revokes the long-lived per-device
// tokens. Rotation is an atomic conditional update: of any number of
// concurrent rotations presenting the same old value, exactly one wins.
type RefreshTokens interface {
	FindByValue(ctx context.Context, value string) (*RefreshToken, error)
	FindByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error)
	FindActiveByDeviceTx(ctx context.Context, tx bun.IDB, deviceID uuid.UUID) (*RefreshToken, error)
	Issue(ctx context.Context, deviceID uuid.UUID, ttl time.Duration) (*RefreshToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, deviceID uuid.UUID, ttl time.Duration) (*RefreshToken, error)
	RotateTx(ctx context.Context, tx bun.IDB, old *RefreshToken, ttl time.Duration) (*RefreshToken, error)
	RevokeForDeviceTx(ctx context.Context, tx bun.IDB, deviceID uuid.UUID) error
}

type refreshTokens struct {
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	return &refreshTokens{db: db}
}

func (r *refreshTokens) FindByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return r.FindByValueTx(ctx, r.db, value)
}

func (r *refreshTokens) FindByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error) {
	token := &RefreshToken{}
	err := tx.NewSelect().
		Model(token).
		Where("?TableAlias.token_value = ?", value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

func (r *refreshTokens) FindActiveByDeviceTx(ctx context.Context, tx bun.IDB, deviceID uuid.UUID) (*RefreshToken, error) {
	token := &RefreshToken{}
	err := tx.NewSelect().
		Model(token).
		Where("?TableAlias.device_id = ? AND ?TableAlias.is_active", deviceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

func (r *refreshTokens) Issue(ctx context.Context, deviceID uuid.UUID, ttl time.Duration) (*RefreshToken, error) {
	return r.IssueTx(ctx, r.db, deviceID, ttl)
}

// IssueTx creates a fresh active token for the device. Any prior token bound
// to the device is deactivated in the same statement batch so the 1:1
// device/token invariant holds.
func (r *refreshTokens) IssueTx(ctx context.Context, tx bun.IDB, deviceID uuid.UUID, ttl time.Duration) (*RefreshToken, error) {
	if err := r.RevokeForDeviceTx(ctx, tx, deviceID); err != nil {
		return nil, err
	}
	return r.insertTx(ctx, tx, deviceID, ttl)
}

// RotateTx invalidates old and issues a replacement bound to the same device.
// The deactivation is a compare-and-swap on (token_value, is_active): when a
// concurrent rotation already consumed the old value, zero rows match and the
// loser observes ErrRefreshRevoked.
func (r *refreshTokens) RotateTx(ctx context.Context, tx bun.IDB, old *RefreshToken, ttl time.Duration) (*RefreshToken, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = current_timestamp").
		Where("token_value = ? AND is_active", old.TokenValue).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrRefreshRevoked
	}

	return r.insertTx(ctx, tx, old.DeviceID, ttl)
}

func (r *refreshTokens) RevokeForDeviceTx(ctx context.Context, tx bun.IDB, deviceID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = current_timestamp").
		Where("device_id = ? AND is_active", deviceID).
		Exec(ctx)
	return err
}

func (r *refreshTokens) insertTx(ctx context.Context, tx bun.IDB, deviceID uuid.UUID, ttl time.Duration) (*RefreshToken, error) {
	token := &RefreshToken{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		TokenValue: NewTokenValue(),
		Active:     true,
		ExpiresAt:  time.Now().Add(ttl),
	}

	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, err
	}

	return token, nil
}
