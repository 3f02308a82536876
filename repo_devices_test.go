package auth_test

import (
	"context"
	"testing"

	"github.com/medtrack/go-authkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevicesGetOrRegisterIsIdempotent(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	user := seedUser(t, repos, "devices@example.com", "secretpass123", true)

	first, err := repos.Devices().GetOrRegister(ctx, user.ID, testDevice())
	require.NoError(t, err)
	assert.Equal(t, user.ID, first.UserID)
	assert.Equal(t, auth.DeviceTypeAndroid, first.DeviceType)
	assert.True(t, first.RefreshActive)

	second, err := repos.Devices().GetOrRegister(ctx, user.ID, testDevice())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestDevicesGetOrRegisterUpdatesNotificationToken(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	user := seedUser(t, repos, "notif@example.com", "secretpass123", true)

	info := testDevice()
	first, err := repos.Devices().GetOrRegister(ctx, user.ID, info)
	require.NoError(t, err)

	info.NotificationToken = "fcm-token-2"
	second, err := repos.Devices().GetOrRegister(ctx, user.ID, info)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "fcm-token-2", second.NotificationToken)

	reloaded, err := repos.Devices().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "fcm-token-2", reloaded.NotificationToken)
}

func TestDevicesUnknownTypeFallsBackToOther(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	user := seedUser(t, repos, "webuser@example.com", "secretpass123", true)

	device, err := repos.Devices().GetOrRegister(ctx, user.ID, auth.DeviceInfo{
		DeviceID:   "browser-01",
		DeviceType: "smart-fridge",
	})
	require.NoError(t, err)
	assert.Equal(t, auth.DeviceTypeOther, device.DeviceType)
}

func TestDevicesSameDeviceIDDifferentUsers(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	alice := seedUser(t, repos, "alice@example.com", "secretpass123", true)
	bob := seedUser(t, repos, "bob@example.com", "secretpass123", true)

	deviceA, err := repos.Devices().GetOrRegister(ctx, alice.ID, testDevice())
	require.NoError(t, err)

	deviceB, err := repos.Devices().GetOrRegister(ctx, bob.ID, testDevice())
	require.NoError(t, err)

	assert.NotEqual(t, deviceA.ID, deviceB.ID)
}

func TestDevicesGetByIDNotFound(t *testing.T) {
	repos := setupRepos(t)

	user := seedUser(t, repos, "nodevs@example.com", "secretpass123", true)

	_, err := repos.Devices().GetByID(context.Background(), user.ID)
	require.Error(t, err)
}
