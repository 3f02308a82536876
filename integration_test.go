package auth_test

import (
	"context"
	"testing"

	"github.com/medtrack/go-authkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercises the full account lifecycle: register, confirm, login, refresh,
// replay the consumed refresh token, change the password, log in again.
func TestAccountLifecycle(t *testing.T) {
	repos := setupRepos(t)
	sink := &memorySink{}
	ctx := context.Background()

	provider := auth.NewUserProvider(repos.Users())
	auther := auth.NewAuthenticator(provider, repos, testConfig{}).
		WithActivitySink(sink)

	// register
	var registered *auth.RegisterUserResponse
	err := auth.NewRegisterUserHandler(repos).
		WithActivitySink(sink).
		Execute(ctx, auth.RegisterUserMessage{
			Email:    "journey@example.com",
			Password: "originalpassword",
			OnResponse: func(r *auth.RegisterUserResponse) {
				registered = r
			},
		})
	require.NoError(t, err)
	require.NotNil(t, registered)
	assert.False(t, registered.User.EmailVerified)

	// confirm email
	err = auth.NewConfirmEmailHandler(repos).
		WithActivitySink(sink).
		Execute(ctx, auth.ConfirmEmailMessage{
			Token: registered.VerificationToken.TokenValue,
		})
	require.NoError(t, err)

	// login from a device
	pair, err := auther.Login(ctx, auth.LoginRequest{
		Identifier: "journey@example.com",
		Password:   "originalpassword",
		Device:     testDevice(),
	})
	require.NoError(t, err)

	session, err := auther.SessionFromToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID.String(), session.GetUserID())

	// refresh, then replay the consumed token
	next, err := auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: pair.RefreshToken})
	assert.ErrorIs(t, err, auth.ErrRefreshRevoked)

	// change password
	err = auth.NewUpdatePasswordHandler(repos).
		WithActivitySink(sink).
		Execute(ctx, auth.UpdatePasswordMessage{
			Identifier:      "journey@example.com",
			CurrentPassword: "originalpassword",
			NewPassword:     "rotatedpassword",
		})
	require.NoError(t, err)

	// the old password no longer logs in, the new one does
	_, err = auther.Login(ctx, auth.LoginRequest{
		Identifier: "journey@example.com",
		Password:   "originalpassword",
		Device:     testDevice(),
	})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = auther.Login(ctx, auth.LoginRequest{
		Identifier: "journey@example.com",
		Password:   "rotatedpassword",
		Device:     testDevice(),
	})
	require.NoError(t, err)

	// refresh tokens issued before the latest login are superseded
	_, err = auther.Refresh(ctx, auth.RefreshRequest{RefreshToken: next.RefreshToken})
	assert.ErrorIs(t, err, auth.ErrRefreshRevoked)

	types := sink.eventTypes()
	assert.Contains(t, types, auth.ActivityEventUserRegistered)
	assert.Contains(t, types, auth.ActivityEventEmailConfirmed)
	assert.Contains(t, types, auth.ActivityEventLoginSuccess)
	assert.Contains(t, types, auth.ActivityEventRefreshRotated)
	assert.Contains(t, types, auth.ActivityEventPasswordChanged)
}
