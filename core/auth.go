package core

import "time"

// Challenge represents a pending authentication challenge. It lives
// server-side keyed by nonce and is consumed at most once.
type Challenge struct {
	Nonce     string    // Random nonce embedded in the signable message
	Address   string    // Ethereum address claimed by the caller
	TokenID   string    // Token the caller claims to own
	Message   string    // Canonical message text handed to the wallet
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Credential describes the claims bound into an issued bearer credential.
// Credentials are immutable; rotation supersedes, it never mutates.
type Credential struct {
	ID          string // Unique credential identifier (jti)
	Address     string // Subject address
	SessionID   string // Session the credential is bound to
	ActiveToken string // Token that was active at issuance
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Permission names granted to authenticated owners.
const (
	PermissionChat   = "chat"
	PermissionSwitch = "switch"
)

// DefaultPermissions returns the permission set bound into credentials at login.
func DefaultPermissions() []string {
	return []string{PermissionChat, PermissionSwitch}
}

// HasPermission reports whether the credential carries the named permission.
func (c *Credential) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}
