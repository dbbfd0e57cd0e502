package ports

import "context"

// OwnershipOracle reads token ownership and metadata from the ledger.
// All calls are idempotent reads. Implementations must bound their own I/O
// with the supplied context; transient failures surface as
// core.ErrOracleUnavailable, never as a false ownership negative.
type OwnershipOracle interface {
	// OwnerOf returns the current owner address of a token.
	OwnerOf(ctx context.Context, tokenID string) (string, error)

	// TokensOf returns all token ids currently owned by an address.
	TokensOf(ctx context.Context, address string) ([]string, error)

	// TokenMetadata returns the raw (possibly encrypted) trait metadata blob
	// for a token, or nil when the token has none.
	TokenMetadata(ctx context.Context, tokenID string) ([]byte, error)
}
