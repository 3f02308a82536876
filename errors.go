package auth

import "github.com/goliatone/go-errors"

const (
	TextCodeEmailInUse        = "EMAIL_ALREADY_IN_USE"
	TextCodeUsernameInUse     = "USERNAME_ALREADY_IN_USE"
	TextCodeTokenNotFound     = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeRefreshExpired    = "REFRESH_TOKEN_EXPIRED"
	TextCodeRefreshRevoked    = "REFRESH_TOKEN_REVOKED"
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeInvalidPassword   = "INVALID_CURRENT_PASSWORD"
	TextCodeInvalidSignature  = "INVALID_TOKEN_SIGNATURE"
	TextCodeTokenMalformed    = "MALFORMED_TOKEN"
	TextCodeAlreadyVerified   = "EMAIL_ALREADY_VERIFIED"
	TextCodeInvalidTransition = "INVALID_TOKEN_TRANSITION"
	TextCodeEmptyString       = "EMPTY_STRING"
)

// ErrEmailAlreadyInUse is returned when a registration email collides with an
// existing account.
var ErrEmailAlreadyInUse = errors.New("email address already in use", errors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(errors.CodeConflict)

// ErrUsernameAlreadyInUse is returned when a registration username collides
// with an existing account.
var ErrUsernameAlreadyInUse = errors.New("username already in use", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameInUse).
	WithCode(errors.CodeConflict)

// ErrTokenNotFound is returned when a presented token value has no record.
var ErrTokenNotFound = errors.New("token not found", errors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired is returned for expired access and email verification
// tokens. The caller's remedy is to request a new token.
var ErrTokenExpired = errors.New("token has expired", errors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshExpired is returned when a refresh token is past its TTL. The
// caller must log in again; regeneration is not possible.
var ErrRefreshExpired = errors.New("refresh token has expired", errors.CategoryValidation).
	WithTextCode(TextCodeRefreshExpired).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshRevoked is returned when a refresh token has been deactivated,
// either explicitly or because a concurrent rotation already consumed it.
var ErrRefreshRevoked = errors.New("refresh token has been revoked", errors.CategoryConflict).
	WithTextCode(TextCodeRefreshRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials coalesces unknown-identifier and wrong-password
// failures so callers cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCurrentPassword is returned when a password change presents a
// wrong current password.
var ErrInvalidCurrentPassword = errors.New("current password does not match", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSignature is returned when an access token fails signature
// verification.
var ErrInvalidSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when an access token cannot be parsed.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeBadRequest)

// ErrAlreadyVerified is returned when token regeneration is requested for an
// account whose email is already verified.
var ErrAlreadyVerified = errors.New("email address already verified", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeConflict)

// ErrInvalidTokenTransition is returned when a verification token status
// change is not allowed by the lifecycle graph.
var ErrInvalidTokenTransition = errors.New("invalid verification token transition", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString is returned when a required string input is empty.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithTextCode(TextCodeEmptyString).
	WithCode(errors.CodeBadRequest)
