package core

import "errors"

var (
	// ErrInvalidInput is returned for malformed addresses, token ids or messages.
	ErrInvalidInput = errors.New("invalid input")

	// ErrChallengeExpired is returned when a challenge is absent, expired or
	// already consumed. Replays of a consumed challenge land here.
	ErrChallengeExpired = errors.New("challenge expired or already used")

	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrNotOwner is returned when the chain reports a different owner for the
	// claimed token. Authoritative negative; callers must not retry.
	ErrNotOwner = errors.New("address does not own token")

	// ErrNotOwned is returned when a switch targets a token outside the
	// session's owned set.
	ErrNotOwned = errors.New("token not in owned set")

	// ErrOracleUnavailable is returned for transient chain lookup failures.
	// Retryable, unlike ErrNotOwner.
	ErrOracleUnavailable = errors.New("ownership oracle unavailable")

	// ErrSessionNotFound is returned when a session id resolves to nothing,
	// either because it expired or was revoked.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCredentialInvalid is returned for expired, revoked or tampered
	// credentials.
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrRateLimited is returned when a session exceeds its switch budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrInternal is returned for failures the caller can do nothing about.
	ErrInternal = errors.New("internal error")
)
