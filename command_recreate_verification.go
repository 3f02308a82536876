package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RecreateVerificationMessage struct {
	Token      string `json:"token" doc:"Previous email verification token value"`
	OnResponse func(t *EmailVerificationToken)
}

func (e RecreateVerificationMessage) Type() string { return "user.recreate_verification" }

// RecreateVerificationHandler supersedes a stale verification token with a
// fresh value and expiry. The old value never validates again.
type RecreateVerificationHandler struct {
	repo            RepositoryManager
	verificationTTL time.Duration
	logger          Logger
}

// NewRecreateVerificationHandler creates a handler with sane defaults.
func NewRecreateVerificationHandler(repo RepositoryManager) *RecreateVerificationHandler {
	return &RecreateVerificationHandler{
		repo:            repo,
		verificationTTL: 24 * time.Hour,
		logger:          defLogger{},
	}
}

// WithVerificationTTL overrides how long regenerated tokens live.
func (h *RecreateVerificationHandler) WithVerificationTTL(ttl time.Duration) *RecreateVerificationHandler {
	if ttl > 0 {
		h.verificationTTL = ttl
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RecreateVerificationHandler) WithLogger(logger Logger) *RecreateVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RecreateVerificationHandler) Execute(ctx context.Context, event RecreateVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification token recreation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RecreateVerificationHandler) execute(ctx context.Context, event RecreateVerificationMessage) error {
	var refreshed *EmailVerificationToken

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := h.repo.VerificationTokens().FindByValueTx(ctx, tx, event.Token)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve verification token")
		}

		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, token.UserID.String())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve token owner")
		}

		if user.EmailVerified {
			return ErrAlreadyVerified
		}

		refreshed, err = h.repo.VerificationTokens().RegenerateTx(ctx, tx, token, h.verificationTTL)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "verification token recreation failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(refreshed)
	}

	return nil
}
