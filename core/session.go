package core

import "time"

// Message entry types kept in the session's conversation window.
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
	MessageTypeSwitch    = "switch"
)

// Message is a single entry in a session's bounded conversation window.
// Switch markers record persona changes in-line so history survives a switch.
type Message struct {
	Type    string    `json:"type"`
	Content string    `json:"content,omitempty"`
	From    string    `json:"from,omitempty"` // previous token id, switch markers only
	To      string    `json:"to,omitempty"`   // new token id, switch markers only
	At      time.Time `json:"at"`
}

// Session represents an authenticated owner bound to an active token and its
// conversation state. All mutation happens through the session store's atomic
// operations; nothing outside the store may hold a *Session across calls.
type Session struct {
	ID             string
	Address        string
	OwnedTokens    []string
	ActiveToken    string
	Traits         *TraitDescriptor
	Messages       []Message
	SwitchTimes    []time.Time // timestamps of recent persona switches
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
}

// Owns reports whether tokenID is in the session's owned set.
func (s *Session) Owns(tokenID string) bool {
	for _, id := range s.OwnedTokens {
		if id == tokenID {
			return true
		}
	}
	return false
}

// AppendMessage adds an entry to the conversation window, trimming the oldest
// entries so the window never exceeds maxLen.
func (s *Session) AppendMessage(m Message, maxLen int) {
	s.Messages = append(s.Messages, m)
	if maxLen > 0 && len(s.Messages) > maxLen {
		s.Messages = s.Messages[len(s.Messages)-maxLen:]
	}
}

// Touch refreshes the session's activity timestamp and expiry.
func (s *Session) Touch(now time.Time, idleTimeout time.Duration) {
	s.LastActivityAt = now
	s.ExpiresAt = now.Add(idleTimeout)
}

// Expired reports whether the session has been idle past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SwitchAllowed reports whether another persona switch fits under the rolling
// window limit. It does not record anything; call RecordSwitch once the
// switch actually commits.
func (s *Session) SwitchAllowed(now time.Time, limit int, window time.Duration) bool {
	return s.switchesSince(now.Add(-window)) < limit
}

// RecordSwitch notes a committed persona switch and drops timestamps that
// have aged out of the rolling window.
func (s *Session) RecordSwitch(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := s.SwitchTimes[:0]
	for _, t := range s.SwitchTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.SwitchTimes = append(kept, now)
}

func (s *Session) switchesSince(cutoff time.Time) int {
	n := 0
	for _, t := range s.SwitchTimes {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
