package oracle

import (
	"context"
	"sync"

	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/ports"
)

// MemoryOracle is an in-memory ports.OwnershipOracle used in tests and local
// development. Ownership is mutable so transfer scenarios can be scripted;
// setting Unavailable makes every call fail like a dead RPC endpoint.
type MemoryOracle struct {
	mu          sync.RWMutex
	owners      map[string]string // tokenID -> address
	metadata    map[string][]byte // tokenID -> blob
	Unavailable bool
}

// NewMemoryOracle creates an empty in-memory oracle.
func NewMemoryOracle() *MemoryOracle {
	return &MemoryOracle{
		owners:   make(map[string]string),
		metadata: make(map[string][]byte),
	}
}

// SetOwner assigns a token to an address.
func (o *MemoryOracle) SetOwner(tokenID, address string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owners[tokenID] = address
}

// SetMetadata stores a metadata blob for a token.
func (o *MemoryOracle) SetMetadata(tokenID string, blob []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metadata[tokenID] = blob
}

func (o *MemoryOracle) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.Unavailable {
		return "", core.ErrOracleUnavailable
	}
	owner, ok := o.owners[tokenID]
	if !ok {
		return "", core.ErrOracleUnavailable
	}
	return owner, nil
}

func (o *MemoryOracle) TokensOf(ctx context.Context, address string) ([]string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.Unavailable {
		return nil, core.ErrOracleUnavailable
	}
	var tokens []string
	for tokenID, owner := range o.owners {
		if owner == address {
			tokens = append(tokens, tokenID)
		}
	}
	return tokens, nil
}

func (o *MemoryOracle) TokenMetadata(ctx context.Context, tokenID string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.Unavailable {
		return nil, core.ErrOracleUnavailable
	}
	return o.metadata[tokenID], nil
}

var _ ports.OwnershipOracle = (*MemoryOracle)(nil)
