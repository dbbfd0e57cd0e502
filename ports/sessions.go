package ports

import "github.com/layer-3/rangda/core"

// SessionStore is the process-local home of live sessions. Implementations
// guarantee that every operation is atomic and that readers only ever observe
// fully applied session states.
type SessionStore interface {
	// Create inserts a session. If a session already exists for the same
	// address it is removed first and its id returned, so the caller can
	// revoke credentials bound to it. One session per address, always.
	Create(session *core.Session) (replacedID string)

	// Get returns a snapshot of the session, or core.ErrSessionNotFound.
	// Expired sessions are not returned even if the sweeper has not yet
	// collected them.
	Get(sessionID string) (*core.Session, error)

	// Touch refreshes the session's activity timestamp and expiry.
	Touch(sessionID string) error

	// Mutate runs fn against the live session under the store lock.
	// fn returning an error aborts the mutation; the session is left as if
	// fn had never run.
	Mutate(sessionID string, fn func(*core.Session) error) error

	// Remove deletes a session by id.
	Remove(sessionID string)

	// RemoveByAddress deletes the session owned by address, returning its id
	// and whether one existed. Used for forced invalidation on ownership
	// transfer.
	RemoveByAddress(address string) (sessionID string, found bool)

	// SweepExpired removes every session idle past its expiry and returns
	// how many were collected.
	SweepExpired() int
}
