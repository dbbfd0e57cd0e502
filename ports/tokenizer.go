package ports

import (
	"context"

	"github.com/layer-3/rangda/core"
)

// Tokenizer mints and validates bearer credentials.
type Tokenizer interface {
	// Issue signs a new credential for the given session.
	Issue(address, sessionID, activeToken string, permissions []string) (raw string, cred *core.Credential, err error)

	// Validate checks integrity, expiry and revocation, returning the
	// embedded claims. Any failure is core.ErrCredentialInvalid.
	Validate(ctx context.Context, raw string) (*core.Credential, error)

	// Rotate issues a replacement credential preserving the session binding.
	// Only permitted inside the refresh window at the tail of the old
	// credential's lifetime; the old credential is revoked on success.
	Rotate(ctx context.Context, raw string) (newRaw string, cred *core.Credential, err error)

	// Revoke denylists a credential id for at least the remaining credential
	// lifetime.
	Revoke(ctx context.Context, credentialID string) error
}
