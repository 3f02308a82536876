package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationTokens manages the single-use email verification tokens. Each
// user owns one logical slot: regeneration supersedes the value in place.
type VerificationTokens interface {
	FindByValue(ctx context.Context, value string) (*EmailVerificationToken, error)
	FindByValueTx(ctx context.Context, tx bun.IDB, value string) (*EmailVerificationToken, error)
	FindByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*EmailVerificationToken, error)
	IssueFor(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*EmailVerificationToken, error)
	IssueForTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ttl time.Duration) (*EmailVerificationToken, error)
	ConfirmTx(ctx context.Context, tx bun.IDB, token *EmailVerificationToken) error
	RegenerateTx(ctx context.Context, tx bun.IDB, token *EmailVerificationToken, ttl time.Duration) (*EmailVerificationToken, error)
}

type verificationTokens struct {
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	return &verificationTokens{db: db}
}

func (r *verificationTokens) FindByValue(ctx context.Context, value string) (*EmailVerificationToken, error) {
	return r.FindByValueTx(ctx, r.db, value)
}

func (r *verificationTokens) FindByValueTx(ctx context.Context, tx bun.IDB, value string) (*EmailVerificationToken, error) {
	token := &EmailVerificationToken{}
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

func (r *verificationTokens) FindByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*EmailVerificationToken, error) {
	token := &EmailVerificationToken{}
	err := tx.NewSelect().
		Model(token).
		Where("?TableAlias.user_id = ?", userID).
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

func (r *verificationTokens) IssueFor(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*EmailVerificationToken, error) {
	return r.IssueForTx(ctx, r.db, userID, ttl)
}

func (r *verificationTokens) IssueForTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ttl time.Duration) (*EmailVerificationToken, error) {
	token := &EmailVerificationToken{
		ID:         uuid.New(),
		UserID:     userID,
		TokenValue: NewTokenValue(),
		Status:     TokenStatusPending,
		ExpiresAt:  time.Now().Add(ttl),
	}

	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, err
	}

	return token, nil
}

// ConfirmTx transitions the token PENDING -> CONFIRMED. Idempotency for
// already-verified users is handled by the caller before any write.
func (r *verificationTokens) ConfirmTx(ctx context.Context, tx bun.IDB, token *EmailVerificationToken) error {
	if !CanTransitionTokenStatus(token.Status, TokenStatusConfirmed) {
		return ErrInvalidTokenTransition.WithMetadata(map[string]any{
			"from": token.Status,
			"to":   TokenStatusConfirmed,
		})
	}

	_, err := tx.NewUpdate().
		Model((*EmailVerificationToken)(nil)).
		Set("status = ?", TokenStatusConfirmed).
		Set("updated_at = current_timestamp").
		Where("id = ? AND status = ?", token.ID, TokenStatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}

	token.Status = TokenStatusConfirmed
	return nil
}

// RegenerateTx supersedes the token value and extends the expiry, keeping the
// same logical slot for the user. The previous value never validates again.
func (r *verificationTokens) RegenerateTx(ctx context.Context, tx bun.IDB, token *EmailVerificationToken, ttl time.Duration) (*EmailVerificationToken, error) {
	if token.Status == TokenStatusConfirmed {
		return nil, ErrInvalidTokenTransition.WithMetadata(map[string]any{
			"from": token.Status,
			"to":   TokenStatusPending,
		})
	}

	refreshed := &EmailVerificationToken{
		ID:         token.ID,
		UserID:     token.UserID,
		TokenValue: NewTokenValue(),
		Status:     TokenStatusPending,
		ExpiresAt:  time.Now().Add(ttl),
	}

	_, err := tx.NewUpdate().
		Model((*EmailVerificationToken)(nil)).
		Set("token_value = ?", refreshed.TokenValue).
		Set("status = ?", TokenStatusPending).
		Set("expires_at = ?", refreshed.ExpiresAt).
		Set("updated_at = current_timestamp").
		Where("id = ?", token.ID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return refreshed, nil
}
