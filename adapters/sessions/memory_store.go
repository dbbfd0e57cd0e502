// Package sessions holds live session state. All state is process memory and
// is lost on restart, which is acceptable: owners simply re-authenticate.
package sessions

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/ports"
)

// MemoryStore is a mutex-guarded in-memory implementation of
// ports.SessionStore. A secondary address index enforces the
// one-session-per-address invariant.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*core.Session
	byAddress map[string]string

	idleTimeout   time.Duration
	sweepInterval time.Duration

	stopSweep chan struct{}
	sweepDone chan struct{}
	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMemoryStore creates a session store. Sessions idle longer than
// idleTimeout are collected by the sweeper, which runs every sweepInterval
// once Start is called.
func NewMemoryStore(idleTimeout, sweepInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*core.Session),
		byAddress:     make(map[string]string),
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
}

// Create inserts a session, replacing any existing session for the same
// address. The replaced session's id is returned so its credentials can be
// revoked.
func (s *MemoryStore) Create(session *core.Session) (replacedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldID, ok := s.byAddress[session.Address]; ok {
		delete(s.sessions, oldID)
		replacedID = oldID
	}

	s.sessions[session.ID] = snapshot(session)
	s.byAddress[session.Address] = session.ID
	return replacedID
}

// Get returns a snapshot of a live session. Sessions past their expiry are
// reported as not found even before the sweeper collects them.
func (s *MemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Expired(time.Now()) {
		return nil, core.ErrSessionNotFound
	}
	return snapshot(session), nil
}

// Touch refreshes a session's activity timestamp and expiry.
func (s *MemoryStore) Touch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	now := time.Now()
	if !ok || session.Expired(now) {
		return core.ErrSessionNotFound
	}
	session.Touch(now, s.idleTimeout)
	return nil
}

// Mutate applies fn to the session under the store lock. fn operates on a
// working copy; an error from fn discards the copy, so a failed mutation is
// never partially visible.
func (s *MemoryStore) Mutate(sessionID string, fn func(*core.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Expired(time.Now()) {
		return core.ErrSessionNotFound
	}

	working := snapshot(session)
	if err := fn(working); err != nil {
		return err
	}

	s.sessions[sessionID] = working
	return nil
}

// Remove deletes a session by id.
func (s *MemoryStore) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(sessionID)
}

// RemoveByAddress deletes the session owned by address. Used when an external
// transfer notification reports the owner no longer holds the active token.
func (s *MemoryStore) RemoveByAddress(address string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID, ok := s.byAddress[address]
	if !ok {
		return "", false
	}
	s.removeLocked(sessionID)
	return sessionID, true
}

// SweepExpired removes every expired session and returns the count. Keys are
// snapshotted first so the lock is never held for the whole sweep.
func (s *MemoryStore) SweepExpired() int {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	removed := 0
	now := time.Now()
	for _, id := range ids {
		s.mu.Lock()
		if session, ok := s.sessions[id]; ok && session.Expired(now) {
			s.removeLocked(id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Start launches the background sweeper. Idempotent.
func (s *MemoryStore) Start(log *logrus.Logger) {
	s.startOnce.Do(func() {
		s.started = true
		go func() {
			defer close(s.sweepDone)
			ticker := time.NewTicker(s.sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := s.SweepExpired(); n > 0 && log != nil {
						log.WithField("removed", n).Debug("session sweep")
					}
				case <-s.stopSweep:
					return
				}
			}
		}()
	})
}

// Stop halts the sweeper and waits for it to exit. Idempotent.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
		if s.started {
			<-s.sweepDone
		}
	})
}

func (s *MemoryStore) removeLocked(sessionID string) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.sessions, sessionID)
	if s.byAddress[session.Address] == sessionID {
		delete(s.byAddress, session.Address)
	}
}

// snapshot copies a session deeply enough that no caller shares mutable
// slices with the stored record. The trait descriptor is immutable and is
// shared as-is.
func snapshot(in *core.Session) *core.Session {
	out := *in
	out.OwnedTokens = append([]string(nil), in.OwnedTokens...)
	out.Messages = append([]core.Message(nil), in.Messages...)
	out.SwitchTimes = append([]time.Time(nil), in.SwitchTimes...)
	return &out
}

var _ ports.SessionStore = (*MemoryStore)(nil)
