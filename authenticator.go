package auth

import (
	"context"
	"errors"
	"reflect"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther coordinates credential verification, access token issuance, and the
// per-device refresh token lifecycle. It owns no storage of its own; all
// persistence goes through the RepositoryManager.
type Auther struct {
	provider        IdentityProvider
	repo            RepositoryManager
	signingKey      []byte
	tokenExpiration int
	refreshTTL      time.Duration
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	activitySink    ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, repo RepositoryManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:        provider,
		repo:            repo,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		refreshTTL:      time.Duration(opts.GetRefreshTokenExpiration()) * 24 * time.Hour,
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
		activitySink:    noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the default token service.
func (s *Auther) WithTokenService(service TokenService) *Auther {
	if service != nil {
		s.tokenService = service
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies credentials and, in a single transaction, registers the
// device and binds a fresh refresh token to it. Any previously active token
// for that device is revoked in the same transaction.
func (s *Auther) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if err := req.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid login request")
	}

	identity, err := s.provider.VerifyIdentity(ctx, req.Identifier, req.Password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", "", map[string]any{
			"identifier": req.Identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", "", map[string]any{
			"identifier": req.Identifier,
			"error":      ErrInvalidCredentials.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity has a malformed ID")
	}

	accessToken, accessExpiresAt, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, err
	}

	var refresh *RefreshToken
	var device *Device

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		if device, txErr = s.repo.Devices().GetOrRegisterTx(ctx, tx, userID, req.Device); txErr != nil {
			return txErr
		}

		if !device.RefreshActive {
			if txErr = s.repo.Devices().SetRefreshActiveTx(ctx, tx, device.ID, true); txErr != nil {
				return txErr
			}
			device.RefreshActive = true
		}

		refresh, txErr = s.repo.RefreshTokens().IssueTx(ctx, tx, device.ID, s.refreshTTL)
		return txErr
	})

	if err != nil {
		s.logger.Error("Login failed to bind refresh token", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to bind refresh token")
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), device.DeviceID, map[string]any{
		"identifier": req.Identifier,
	})

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refresh.TokenValue,
		RefreshExpiresAt: refresh.ExpiresAt,
		TokenType:        "Bearer",
	}, nil
}

// Refresh exchanges a live refresh token for a new token pair. The presented
// value is consumed: rotation deactivates it and issues a replacement bound
// to the same device. Of concurrent calls presenting the same value, exactly
// one succeeds; the rest observe ErrRefreshRevoked.
func (s *Auther) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	if err := req.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid refresh request")
	}

	old, err := s.repo.RefreshTokens().FindByValue(ctx, req.RefreshToken)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, "", "", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	if old.Expired() {
		s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, "", old.DeviceID.String(), map[string]any{
			"error": ErrRefreshExpired.Error(),
		})
		return nil, ErrRefreshExpired
	}

	if !old.Active {
		s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, "", old.DeviceID.String(), map[string]any{
			"error": ErrRefreshRevoked.Error(),
		})
		return nil, ErrRefreshRevoked
	}

	device, err := s.repo.Devices().GetByID(ctx, old.DeviceID)
	if err != nil {
		return nil, err
	}

	if !device.RefreshActive {
		s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, device.UserID.String(), device.DeviceID, map[string]any{
			"error": ErrRefreshRevoked.Error(),
		})
		return nil, ErrRefreshRevoked
	}

	var next *RefreshToken
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		next, txErr = s.repo.RefreshTokens().RotateTx(ctx, tx, old, s.refreshTTL)
		return txErr
	})

	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, device.UserID.String(), device.DeviceID, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	user, err := s.repo.Users().GetByID(ctx, device.UserID.String())
	if err != nil {
		return nil, err
	}

	identity := identityFromUser(user)

	accessToken, accessExpiresAt, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRefreshRotated, s.actorFromIdentity(identity), identity.ID(), device.DeviceID, nil)

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     next.TokenValue,
		RefreshExpiresAt: next.ExpiresAt,
		TokenType:        "Bearer",
	}, nil
}

// Logout revokes the refresh token bound to the given device and disables
// refresh for the device until the next login.
func (s *Auther) Logout(ctx context.Context, userID, deviceID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed user ID")
	}

	device, err := s.repo.Devices().FindByUserAndDeviceID(ctx, uid, deviceID)
	if err != nil {
		return err
	}

	var revoked *RefreshToken
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, txErr := s.repo.RefreshTokens().FindActiveByDeviceTx(ctx, tx, device.ID)
		if txErr != nil && !errors.Is(txErr, ErrTokenNotFound) {
			return txErr
		}
		revoked = current

		if txErr := s.repo.RefreshTokens().RevokeForDeviceTx(ctx, tx, device.ID); txErr != nil {
			return txErr
		}
		return s.repo.Devices().SetRefreshActiveTx(ctx, tx, device.ID, false)
	})

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke device tokens")
	}

	var metadata map[string]any
	if revoked != nil {
		metadata = map[string]any{
			"refresh_token_id": revoked.ID.String(),
		}
	}

	s.emitAuthEvent(ctx, ActivityEventDeviceRevoked, ActorRef{ID: userID, Type: "user"}, userID, deviceID, metadata)

	return nil
}

// SessionFromToken will take a JWT token and return a Session
func (s *Auther) SessionFromToken(token string) (Session, error) {
	claims, err := s.tokenService.Validate(token)
	if err != nil {
		return nil, err
	}

	issuedAt := claims.IssuedAt()
	expires := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		UserEmail:      claims.Email(),
		Audience:       s.audience,
		Issuer:         s.issuer,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expires,
	}, nil
}

// IdentityFromSession will return the identity associated with a session
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	return s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: identity.ID(), Type: "user"}
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID, deviceID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		DeviceID:   deviceID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record failed", "event", eventType, "error", err)
	}
}

var _ Authenticator = (*Auther)(nil)
