package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/medtrack/go-authkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuther(t *testing.T) (*auth.Auther, auth.RepositoryManager, *memorySink) {
	t.Helper()

	repos := setupRepos(t)
	sink := &memorySink{}
	provider := auth.NewUserProvider(repos.Users())
	auther := auth.NewAuthenticator(provider, repos, testConfig{}).
		WithActivitySink(sink)

	return auther, repos, sink
}

func TestLoginIssuesTokenPair(t *testing.T) {
	auther, repos, sink := setupAuther(t)
	ctx := context.Background()

	user := seedUser(t, repos, "login@example.com", "secretpass123", true)

	pair, err := auther.Login(ctx, auth.LoginRequest{
		Identifier: "login@example.com",
		Password:   "secretpass123",
		Device:     testDevice(),
	})
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	session, err := auther.SessionFromToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), session.GetUserID())

	identity, err := auther.IdentityFromSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", identity.Email())

	assert.Contains(t, sink.eventTypes(), auth.ActivityEventLoginSuccess)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	auther, repos, sink := setupAuther(t)

	seedUser(t, repos, "badpass@example.com", "secretpass123", true)

	_, err := auther.Login(context.Background(), auth.LoginRequest{
		Identifier: "badpass@example.com",
		Password:   "not-the-password",
		Device:     testDevice(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Contains(t, sink.eventTypes(), auth.ActivityEventLoginFailure)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	auther, _, _ := setupAuther(t)

	_, err := auther.Login(context.Background(), auth.LoginRequest{
		Identifier: "ghost@example.com",
		Password:   "whatever12345",
		Device:     testDevice(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginValidatesPayload(t *testing.T) {
	auther, _, _ := setupAuther(t)

	_, err := auther.Login(context.Background(), auth.LoginRequest{})
	assert.Error(t, err)
}

func TestLoginSupersedesPreviousRefreshToken(t *testing.T) {
	auther, repos, _ := setupAuther(t)
	ctx := context.Background()

	seedUser(t, repos, "again@example.com", "secretpass123", true)

	req := auth.LoginRequest{
		Identifier: "again@example.com",
		Password:   "secretpass123",
		Device:     testDevice(),
	}

	first, err := auther.Login(ctx, req)
	require.NoError(t, err)

	second, err := auther.Login(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// the first login's refresh token is no longer usable
	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: first.RefreshToken})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrRefreshRevoked)
}

func TestRefreshRotatesToken(t *testing.T) {
	auther, repos, sink := setupAuther(t)
	ctx := context.Background()

	seedUser(t, repos, "refresh@example.com", "secretpass123", true)

	pair, err := auther.Login(ctx, auth.LoginRequest{
		Identifier: "refresh@example.com",
		Password:   "secretpass123",
		Device:     testDevice(),
	})
	require.NoError(t, err)

	next, err := auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// the consumed value never works twice
	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrRefreshRevoked)

	// the replacement still works
	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: next.RefreshToken})
	require.NoError(t, err)

	types := sink.eventTypes()
	assert.Contains(t, types, auth.ActivityEventRefreshRotated)
	assert.Contains(t, types, auth.ActivityEventRefreshRejected)
}

func TestRefreshRejectsUnknownValue(t *testing.T) {
	auther, _, _ := setupAuther(t)

	_, err := auther.Refresh(context.Background(), auth.RefreshRequest{
		RefreshToken: auth.NewTokenValue(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	auther, repos, _ := setupAuther(t)
	ctx := context.Background()

	user := seedUser(t, repos, "expired@example.com", "secretpass123", true)
	device, err := repos.Devices().GetOrRegister(ctx, user.ID, testDevice())
	require.NoError(t, err)

	stale, err := repos.RefreshTokens().Issue(ctx, device.ID, -time.Hour)
	require.NoError(t, err)

	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: stale.TokenValue})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrRefreshExpired)
}

func TestLogoutRevokesDevice(t *testing.T) {
	auther, repos, sink := setupAuther(t)
	ctx := context.Background()

	user := seedUser(t, repos, "logout@example.com", "secretpass123", true)

	pair, err := auther.Login(ctx, auth.LoginRequest{
		Identifier: "logout@example.com",
		Password:   "secretpass123",
		Device:     testDevice(),
	})
	require.NoError(t, err)

	stored, err := repos.RefreshTokens().FindByValue(ctx, pair.RefreshToken)
	require.NoError(t, err)

	err = auther.Logout(ctx, user.ID.String(), testDevice().DeviceID)
	require.NoError(t, err)

	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrRefreshRevoked)

	// the revocation event names the token that was active at logout time
	revokedEvent, ok := sink.find(auth.ActivityEventDeviceRevoked)
	require.True(t, ok)
	assert.Equal(t, stored.ID.String(), revokedEvent.Metadata["refresh_token_id"])

	// logging back in re-enables refresh for the device
	again, err := auther.Login(ctx, auth.LoginRequest{
		Identifier: "logout@example.com",
		Password:   "secretpass123",
		Device:     testDevice(),
	})
	require.NoError(t, err)

	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: again.RefreshToken})
	require.NoError(t, err)
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	auther, repos, _ := setupAuther(t)
	ctx := context.Background()

	seedUser(t, repos, "winner@example.com", "secretpass123", true)

	pair, err := auther.Login(ctx, auth.LoginRequest{
		Identifier: "winner@example.com",
		Password:   "secretpass123",
		Device:     testDevice(),
	})
	require.NoError(t, err)

	const contenders = 5
	results := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		go func() {
			_, err := auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: pair.RefreshToken})
			results <- err
		}()
	}

	winners := 0
	for i := 0; i < contenders; i++ {
		if err := <-results; err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, auth.ErrRefreshRevoked)
		}
	}

	assert.Equal(t, 1, winners)
}
