package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/rangda/adapters/sessions"
	"github.com/layer-3/rangda/core"
)

type scriptedGenerator struct {
	reply string
	err   error

	lastPrompt string
	lastWindow []core.Message
	lastMods   core.Modifiers
	calls      int
}

func (g *scriptedGenerator) Generate(ctx context.Context, systemPrompt string, window []core.Message, mods core.Modifiers) (string, error) {
	g.calls++
	g.lastPrompt = systemPrompt
	g.lastWindow = window
	g.lastMods = mods
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newChatFixture(t *testing.T, gen *scriptedGenerator, messageWindow int) (*ChatService, *sessions.MemoryStore, string) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := sessions.NewMemoryStore(time.Hour, time.Minute)
	now := time.Now()
	session := &core.Session{
		ID:          "sess-1",
		Address:     "0x1111111111111111111111111111111111111111",
		OwnedTokens: []string{"7"},
		ActiveToken: "7",
		Traits: &core.TraitDescriptor{
			TokenID:     "7",
			Personality: "sage",
			Style:       "concise",
			Expertise:   []string{"philosophy", "memes"},
			Modifiers:   core.Modifiers{Temperature: 0.7, Verbosity: 0.5, Humor: 0.5, Formality: 0.5, Energy: 0.5},
			Rarity:      "common",
		},
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
	}
	store.Create(session)

	return NewChatService(store, gen, log, time.Hour, messageWindow, time.Second), store, session.ID
}

func TestChatTurn(t *testing.T) {
	gen := &scriptedGenerator{reply: "Ah, a question worthy of contemplation."}
	svc, store, sessionID := newChatFixture(t, gen, 30)

	reply, err := svc.Chat(context.Background(), sessionID, "what is the way?")
	require.NoError(t, err)
	assert.Equal(t, gen.reply, reply)

	assert.Contains(t, gen.lastPrompt, "sage")
	require.Len(t, gen.lastWindow, 1)
	assert.Equal(t, core.MessageTypeUser, gen.lastWindow[0].Type)
	assert.Equal(t, "what is the way?", gen.lastWindow[0].Content)
	assert.InDelta(t, 0.7, gen.lastMods.Temperature, 1e-9)

	session, err := store.Get(sessionID)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, core.MessageTypeUser, session.Messages[0].Type)
	assert.Equal(t, core.MessageTypeAssistant, session.Messages[1].Type)
	assert.Equal(t, gen.reply, session.Messages[1].Content)
}

func TestChatEmptyMessage(t *testing.T) {
	gen := &scriptedGenerator{reply: "never sent"}
	svc, _, sessionID := newChatFixture(t, gen, 30)

	_, err := svc.Chat(context.Background(), sessionID, "   \n\t ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Zero(t, gen.calls)
}

func TestChatUnknownSession(t *testing.T) {
	gen := &scriptedGenerator{reply: "never sent"}
	svc, _, _ := newChatFixture(t, gen, 30)

	_, err := svc.Chat(context.Background(), "no-such-session", "hello")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.Zero(t, gen.calls)
}

func TestChatWindowBounded(t *testing.T) {
	gen := &scriptedGenerator{reply: "ok"}
	svc, store, sessionID := newChatFixture(t, gen, 6)

	for i := 0; i < 10; i++ {
		_, err := svc.Chat(context.Background(), sessionID, fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
	}

	session, err := store.Get(sessionID)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 6)
	// Oldest entries are trimmed first.
	assert.Equal(t, "turn 7", session.Messages[0].Content)
}

func TestChatGenerationFailureKeepsUserMessage(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("backend down")}
	svc, store, sessionID := newChatFixture(t, gen, 30)

	_, err := svc.Chat(context.Background(), sessionID, "hello?")
	require.Error(t, err)

	session, err := store.Get(sessionID)
	require.NoError(t, err)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, core.MessageTypeUser, session.Messages[0].Type)
}

func TestChatSessionRemovedMidTurn(t *testing.T) {
	gen := &scriptedGenerator{reply: "still delivered"}
	svc, store, sessionID := newChatFixture(t, gen, 30)

	// Simulate a revocation landing between the two mutations by removing the
	// session from inside the generator.
	removing := &removeOnGenerate{inner: gen, store: store, sessionID: sessionID}
	svc = NewChatService(store, removing, logrusDiscard(), time.Hour, 30, time.Second)

	reply, err := svc.Chat(context.Background(), sessionID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "still delivered", reply)

	_, err = store.Get(sessionID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestHistory(t *testing.T) {
	gen := &scriptedGenerator{reply: "reply"}
	svc, _, sessionID := newChatFixture(t, gen, 30)

	_, err := svc.Chat(context.Background(), sessionID, "first")
	require.NoError(t, err)

	history, err := svc.History(sessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)

	_, err = svc.History("no-such-session")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

type removeOnGenerate struct {
	inner     *scriptedGenerator
	store     *sessions.MemoryStore
	sessionID string
}

func (g *removeOnGenerate) Generate(ctx context.Context, systemPrompt string, window []core.Message, mods core.Modifiers) (string, error) {
	g.store.Remove(g.sessionID)
	return g.inner.Generate(ctx, systemPrompt, window, mods)
}

func logrusDiscard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
