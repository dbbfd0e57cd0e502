package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/ports"
	"github.com/layer-3/rangda/traits"
)

// ChatService runs authenticated chat turns against the generation backend.
type ChatService struct {
	sessions ports.SessionStore
	gen      ports.Generator
	log      *logrus.Logger

	idleTimeout     time.Duration
	messageWindow   int
	generateTimeout time.Duration
}

// NewChatService creates the chat orchestrator.
func NewChatService(sessions ports.SessionStore, gen ports.Generator, log *logrus.Logger, idleTimeout time.Duration, messageWindow int, generateTimeout time.Duration) *ChatService {
	if generateTimeout == 0 {
		generateTimeout = 30 * time.Second
	}
	return &ChatService{
		sessions:        sessions,
		gen:             gen,
		log:             log,
		idleTimeout:     idleTimeout,
		messageWindow:   messageWindow,
		generateTimeout: generateTimeout,
	}
}

// Chat appends the user's message, asks the backend for the persona's reply
// and appends that too. The store lock is never held across the backend
// call.
func (s *ChatService) Chat(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", core.ErrInvalidInput
	}

	var window []core.Message
	var descriptor *core.TraitDescriptor

	err := s.sessions.Mutate(sessionID, func(sess *core.Session) error {
		now := time.Now()
		sess.AppendMessage(core.Message{Type: core.MessageTypeUser, Content: text, At: now}, s.messageWindow)
		sess.Touch(now, s.idleTimeout)

		window = append([]core.Message(nil), sess.Messages...)
		descriptor = sess.Traits
		return nil
	})
	if err != nil {
		return "", err
	}

	gctx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	reply, err := s.gen.Generate(gctx, traits.RenderSystemPrompt(descriptor), window, descriptor.Modifiers)
	if err != nil {
		// The user's message stays in the window; a retried turn reads as a
		// repeated question rather than a lost one.
		s.log.WithError(err).WithField("session_id", sessionID).Warn("generation failed")
		return "", err
	}

	err = s.sessions.Mutate(sessionID, func(sess *core.Session) error {
		now := time.Now()
		sess.AppendMessage(core.Message{Type: core.MessageTypeAssistant, Content: reply, At: now}, s.messageWindow)
		sess.Touch(now, s.idleTimeout)
		return nil
	})
	if err != nil {
		// Session evaporated mid-turn (sweep or forced revocation). The
		// caller still gets their reply; there is just nothing to append to.
		s.log.WithField("session_id", sessionID).Debug("session gone before reply could be recorded")
	}

	return reply, nil
}

// History returns a snapshot of the session's conversation window.
func (s *ChatService) History(sessionID string) ([]core.Message, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}
