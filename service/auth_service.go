package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/rangda/adapters/events"
	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/internal/eth"
	"github.com/layer-3/rangda/ports"
	"github.com/layer-3/rangda/traits"
)

// challengeTemplate is the canonical message handed to the wallet. The nonce
// line is what Login parses back out; everything else is displayed to the
// signer so they can see what they are approving.
const challengeTemplate = `Rangda wants you to chat as persona #%s

Address: %s
Token: %s
Nonce: %s
Issued At: %s`

var tokenIDPattern = regexp.MustCompile(`^[0-9]{1,78}$`)

// Config carries the tunables of the auth flow. Zero values fall back to the
// documented defaults.
type Config struct {
	ChallengeTTL  time.Duration // default 5m
	IdleTimeout   time.Duration // default 1h
	MessageWindow int           // default 30
	SwitchLimit   int           // default 10
	SwitchWindow  time.Duration // default 1h
	OracleTimeout time.Duration // default 8s
}

func (c *Config) applyDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = time.Hour
	}
	if c.MessageWindow == 0 {
		c.MessageWindow = 30
	}
	if c.SwitchLimit == 0 {
		c.SwitchLimit = 10
	}
	if c.SwitchWindow == 0 {
		c.SwitchWindow = time.Hour
	}
	if c.OracleTimeout == 0 {
		c.OracleTimeout = 8 * time.Second
	}
}

// LoginResult is what a successful authentication hands back to the caller.
type LoginResult struct {
	RawCredential string
	Credential    *core.Credential
	SessionID     string
	OwnedTokens   []string
	Traits        *core.TraitDescriptor
}

// ownershipForgetter is implemented by caching oracles that can drop state
// for an address on forced invalidation.
type ownershipForgetter interface {
	Forget(address string)
}

// AuthService orchestrates challenge issuance, ownership verification,
// session lifecycle and persona switching.
type AuthService struct {
	oracle     ports.OwnershipOracle
	tokenizer  ports.Tokenizer
	sessions   ports.SessionStore
	resolver   *traits.Resolver
	eventPub   ports.EventPublisher
	log        *logrus.Logger
	challenges *challengeStore
	cfg        Config
}

// NewAuthService creates the auth orchestrator. eventPub may be nil for
// single-instance deployments.
func NewAuthService(
	oracle ports.OwnershipOracle,
	tokenizer ports.Tokenizer,
	sessions ports.SessionStore,
	resolver *traits.Resolver,
	eventPub ports.EventPublisher,
	log *logrus.Logger,
	cfg Config,
) *AuthService {
	cfg.applyDefaults()
	return &AuthService{
		oracle:     oracle,
		tokenizer:  tokenizer,
		sessions:   sessions,
		resolver:   resolver,
		eventPub:   eventPub,
		log:        log,
		challenges: newChallengeStore(),
		cfg:        cfg,
	}
}

// RequestChallenge creates a single-use challenge for (address, tokenID) and
// returns the message the wallet must sign.
func (s *AuthService) RequestChallenge(address, tokenID string) (*core.Challenge, error) {
	if !eth.ValidAddress(address) || !tokenIDPattern.MatchString(tokenID) {
		return nil, core.ErrInvalidInput
	}
	address = eth.NormalizeAddress(address)

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %v", core.ErrInternal, err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	now := time.Now()
	challenge := core.Challenge{
		Nonce:     nonce,
		Address:   address,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.ChallengeTTL),
	}
	challenge.Message = fmt.Sprintf(challengeTemplate,
		tokenID, address, tokenID, nonce, now.UTC().Format(time.RFC3339))

	s.challenges.Put(challenge)
	return &challenge, nil
}

// Login verifies a signed challenge, confirms on-chain ownership and opens a
// session. A prior session for the same address is replaced; its credentials
// die with it.
func (s *AuthService) Login(ctx context.Context, address, tokenID, message, signature string) (*LoginResult, error) {
	if !eth.ValidAddress(address) || !tokenIDPattern.MatchString(tokenID) {
		return nil, core.ErrInvalidInput
	}
	address = eth.NormalizeAddress(address)

	nonce, ok := parseNonce(message)
	if !ok {
		return nil, core.ErrInvalidInput
	}
	challenge, ok := s.challenges.Consume(nonce)
	if !ok {
		return nil, core.ErrChallengeExpired
	}
	// The challenge binds message, address and token together; any drift
	// means the caller is not replaying what we issued.
	if challenge.Message != message || challenge.Address != address || challenge.TokenID != tokenID {
		return nil, core.ErrInvalidInput
	}

	sig, err := eth.DecodeSignature(signature)
	if err != nil {
		return nil, core.ErrInvalidSignature
	}
	if !eth.VerifyPersonalSignature([]byte(message), sig, address) {
		return nil, core.ErrInvalidSignature
	}

	octx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()

	owner, err := s.oracle.OwnerOf(octx, tokenID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(owner, address) {
		return nil, core.ErrNotOwner
	}

	owned, err := s.oracle.TokensOf(octx, address)
	if err != nil {
		return nil, err
	}
	if !containsToken(owned, tokenID) {
		// Enumeration can lag the authoritative ownerOf answer.
		owned = append(owned, tokenID)
	}

	descriptor, err := s.resolveTraits(octx, tokenID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &core.Session{
		ID:             uuid.New().String(),
		Address:        address,
		OwnedTokens:    owned,
		ActiveToken:    tokenID,
		Traits:         descriptor,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.cfg.IdleTimeout),
	}

	if replacedID := s.sessions.Create(session); replacedID != "" {
		s.publishRevoked(ctx, address, replacedID, events.ReasonReplaced)
	}

	raw, cred, err := s.tokenizer.Issue(address, session.ID, tokenID, core.DefaultPermissions())
	if err != nil {
		// All-or-nothing: a session without an issuable credential is dead
		// weight, drop it again.
		s.sessions.Remove(session.ID)
		return nil, fmt.Errorf("%w: issue credential: %v", core.ErrInternal, err)
	}

	return &LoginResult{
		RawCredential: raw,
		Credential:    cred,
		SessionID:     session.ID,
		OwnedTokens:   owned,
		Traits:        descriptor,
	}, nil
}

// ValidateCredential checks a bearer credential and resolves its session.
// A credential whose session is gone is invalid regardless of its own expiry.
func (s *AuthService) ValidateCredential(ctx context.Context, raw string) (*core.Credential, *core.Session, error) {
	cred, err := s.tokenizer.Validate(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.sessions.Get(cred.SessionID)
	if err != nil {
		return nil, nil, core.ErrCredentialInvalid
	}
	if session.Address != cred.Address {
		return nil, nil, core.ErrCredentialInvalid
	}
	return cred, session, nil
}

// SwitchActiveToken changes the session's active persona to another owned
// token. History is preserved; a switch marker records the hand-over.
func (s *AuthService) SwitchActiveToken(ctx context.Context, sessionID, newTokenID string) (*core.TraitDescriptor, error) {
	if !tokenIDPattern.MatchString(newTokenID) {
		return nil, core.ErrInvalidInput
	}

	// Cheap pre-check outside the lock; the authoritative check runs inside
	// the atomic mutate below.
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Owns(newTokenID) {
		return nil, core.ErrNotOwned
	}

	// Resolve before mutating so the store lock is never held across
	// metadata I/O.
	octx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()
	descriptor, err := s.resolveTraits(octx, newTokenID)
	if err != nil {
		return nil, err
	}

	err = s.sessions.Mutate(sessionID, func(sess *core.Session) error {
		if !sess.Owns(newTokenID) {
			return core.ErrNotOwned
		}
		now := time.Now()
		if !sess.SwitchAllowed(now, s.cfg.SwitchLimit, s.cfg.SwitchWindow) {
			return core.ErrRateLimited
		}

		sess.AppendMessage(core.Message{
			Type: core.MessageTypeSwitch,
			From: sess.ActiveToken,
			To:   newTokenID,
			At:   now,
		}, s.cfg.MessageWindow)
		sess.ActiveToken = newTokenID
		sess.Traits = descriptor
		sess.RecordSwitch(now, s.cfg.SwitchWindow)
		sess.Touch(now, s.cfg.IdleTimeout)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return descriptor, nil
}

// Rotate exchanges a credential nearing expiry for a fresh one bound to the
// same session.
func (s *AuthService) Rotate(ctx context.Context, raw string) (string, *core.Credential, error) {
	cred, err := s.tokenizer.Validate(ctx, raw)
	if err != nil {
		return "", nil, err
	}
	if _, err := s.sessions.Get(cred.SessionID); err != nil {
		return "", nil, core.ErrCredentialInvalid
	}
	return s.tokenizer.Rotate(ctx, raw)
}

// Logout revokes the credential and destroys its session.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	cred, err := s.tokenizer.Validate(ctx, raw)
	if err != nil {
		return err
	}

	if err := s.tokenizer.Revoke(ctx, cred.ID); err != nil {
		return fmt.Errorf("%w: revoke credential: %v", core.ErrInternal, err)
	}
	s.sessions.Remove(cred.SessionID)
	s.publishRevoked(ctx, cred.Address, cred.SessionID, events.ReasonLogout)
	return nil
}

// RevokeAddress force-invalidates the session of an address. Called by the
// transfer-notification path when the owner no longer holds the active token.
func (s *AuthService) RevokeAddress(ctx context.Context, address string) error {
	if !eth.ValidAddress(address) {
		return core.ErrInvalidInput
	}
	address = eth.NormalizeAddress(address)

	if forgetter, ok := s.oracle.(ownershipForgetter); ok {
		forgetter.Forget(address)
	}

	sessionID, found := s.sessions.RemoveByAddress(address)
	if !found {
		return core.ErrSessionNotFound
	}
	s.publishRevoked(ctx, address, sessionID, events.ReasonOwnershipLost)
	return nil
}

func (s *AuthService) resolveTraits(ctx context.Context, tokenID string) (*core.TraitDescriptor, error) {
	metadata, err := s.oracle.TokenMetadata(ctx, tokenID)
	if err != nil {
		// Trait resolution is fail-soft: without metadata the resolver falls
		// back to the keyed-hash derivation. Ownership checks already passed,
		// so a flaky metadata read should not block login.
		if errors.Is(err, core.ErrOracleUnavailable) {
			s.log.WithField("token_id", tokenID).WithError(err).Warn("metadata fetch failed, deriving traits")
			metadata = nil
		} else {
			return nil, err
		}
	}
	return s.resolver.Resolve(tokenID, metadata)
}

func (s *AuthService) publishRevoked(ctx context.Context, address, sessionID, reason string) {
	if s.eventPub == nil {
		return
	}
	if err := s.eventPub.PublishSessionRevoked(ctx, address, sessionID, reason); err != nil {
		// The session is already gone locally, which is the part that
		// matters; peers will converge on the next credential check.
		s.log.WithError(err).Warn("failed to publish session revoked event")
	}
}

// parseNonce extracts the nonce line from a challenge message.
func parseNonce(message string) (string, bool) {
	for _, line := range strings.Split(message, "\n") {
		if rest, ok := strings.CutPrefix(line, "Nonce: "); ok {
			return rest, true
		}
	}
	return "", false
}

func containsToken(tokens []string, tokenID string) bool {
	for _, t := range tokens {
		if t == tokenID {
			return true
		}
	}
	return false
}
