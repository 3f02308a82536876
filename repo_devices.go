package auth

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeviceInfo is the client-supplied description of the installation that is
// logging in.
type DeviceInfo struct {
	DeviceID          string `json:"device_id"`
	DeviceType        string `json:"device_type"`
	NotificationToken string `json:"notification_token"`
}

// Devices associates users with their registered client installations.
type Devices interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	GetOrRegister(ctx context.Context, userID uuid.UUID, info DeviceInfo) (*Device, error)
	GetOrRegisterTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, info DeviceInfo) (*Device, error)
	FindByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (*Device, error)
	FindByUserAndDeviceIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, deviceID string) (*Device, error)
	SetRefreshActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error
}

type devices struct {
	db *bun.DB
}

var _ Devices = (*devices)(nil)

func NewDevicesRepository(db *bun.DB) Devices {
	return &devices{db: db}
}

func (r *devices) GetByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	device := &Device{}
	err := r.db.NewSelect().
		Model(device).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerrors.New("device not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{
					"device_id": id.String(),
				})
		}
		return nil, err
	}
	return device, nil
}

func (r *devices) GetOrRegister(ctx context.Context, userID uuid.UUID, info DeviceInfo) (*Device, error) {
	return r.GetOrRegisterTx(ctx, r.db, userID, info)
}

// GetOrRegisterTx returns the existing record for the (user, deviceId) pair
// or creates one. Re-registering the same physical device never produces a
// duplicate; the unique index on (user_id, device_id) backs that up.
func (r *devices) GetOrRegisterTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, info DeviceInfo) (*Device, error) {
	existing, err := r.FindByUserAndDeviceIDTx(ctx, tx, userID, info.DeviceID)
	if err == nil {
		if info.NotificationToken != "" && info.NotificationToken != existing.NotificationToken {
			existing.NotificationToken = info.NotificationToken
			_, err = tx.NewUpdate().
				Model(existing).
				Column("notification_token").
				Where("id = ?", existing.ID).
				Exec(ctx)
			if err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	deviceType, ok := ParseDeviceType(info.DeviceType)
	if !ok {
		deviceType = DeviceTypeOther
	}

	device := &Device{
		ID:                uuid.New(),
		UserID:            userID,
		DeviceID:          info.DeviceID,
		DeviceType:        deviceType,
		NotificationToken: info.NotificationToken,
		RefreshActive:     true,
	}

	if _, err := tx.NewInsert().Model(device).Exec(ctx); err != nil {
		if IsUniqueViolation(err, "device_id") {
			return r.FindByUserAndDeviceIDTx(ctx, tx, userID, info.DeviceID)
		}
		return nil, err
	}

	return device, nil
}

func (r *devices) FindByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (*Device, error) {
	return r.FindByUserAndDeviceIDTx(ctx, r.db, userID, deviceID)
}

func (r *devices) FindByUserAndDeviceIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, deviceID string) (*Device, error) {
	device := &Device{}
	err := tx.NewSelect().
		Model(device).
		Where("?TableAlias.user_id = ? AND ?TableAlias.device_id = ?", userID, deviceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (r *devices) SetRefreshActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	_, err := tx.NewUpdate().
		Model((*Device)(nil)).
		Set("is_refresh_active = ?", active).
		Set("updated_at = current_timestamp").
		Where("id = ?", id).
		Exec(ctx)
	return err
}
