package service

import (
	"sync"
	"time"

	"github.com/layer-3/rangda/core"
)

// challengeStore holds pending challenges keyed by nonce. Consumption is
// atomic: of two concurrent verifies presenting the same nonce, exactly one
// gets the challenge.
type challengeStore struct {
	mu         sync.Mutex
	challenges map[string]core.Challenge
}

func newChallengeStore() *challengeStore {
	return &challengeStore{challenges: make(map[string]core.Challenge)}
}

func (s *challengeStore) Put(c core.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Prune on write; challenge volume is tiny so a periodic sweep would be
	// overkill.
	now := time.Now()
	for nonce, pending := range s.challenges {
		if now.After(pending.ExpiresAt) {
			delete(s.challenges, nonce)
		}
	}

	s.challenges[c.Nonce] = c
}

// Consume removes and returns the challenge for nonce. A second call with
// the same nonce finds nothing, which is what makes replays fail.
func (s *challengeStore) Consume(nonce string) (core.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[nonce]
	if !ok {
		return core.Challenge{}, false
	}
	delete(s.challenges, nonce)

	if time.Now().After(c.ExpiresAt) {
		return core.Challenge{}, false
	}
	return c, true
}
