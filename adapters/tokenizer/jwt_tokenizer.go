package tokenizer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/ports"
)

// AudienceCredential types the credential JWTs so they cannot be replayed
// against another audience.
const AudienceCredential = "rangda:credential"

// refreshFraction is the tail portion of a credential's lifetime in which
// rotation is permitted.
const refreshFraction = 0.25

// JWTTokenizer implements ports.Tokenizer with ES256-signed JWTs. Revocation
// state lives in the injected denylist.
type JWTTokenizer struct {
	signKey  *ecdsa.PrivateKey
	denylist ports.Denylist
	ttl      time.Duration
}

// NewJWTTokenizer creates a tokenizer issuing credentials valid for ttl.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, denylist ports.Denylist, ttl time.Duration) *JWTTokenizer {
	return &JWTTokenizer{signKey: signKey, denylist: denylist, ttl: ttl}
}

// Issue signs a new credential bound to the given session.
func (j *JWTTokenizer) Issue(address, sessionID, activeToken string, permissions []string) (string, *core.Credential, error) {
	now := time.Now()
	cred := &core.Credential{
		ID:          uuid.New().String(),
		Address:     address,
		SessionID:   sessionID,
		ActiveToken: activeToken,
		Permissions: permissions,
		IssuedAt:    now,
		ExpiresAt:   now.Add(j.ttl),
	}

	claims := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.Address,
			ID:        cred.ID,
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(cred.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceCredential},
		},
		SessionID:   cred.SessionID,
		ActiveToken: cred.ActiveToken,
		Permissions: cred.Permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	raw, err := token.SignedString(j.signKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	return raw, cred, nil
}

// Validate checks signature, expiry and revocation and returns the embedded
// claims. Every validation failure surfaces as core.ErrCredentialInvalid so
// callers cannot distinguish tampering from expiry.
func (j *JWTTokenizer) Validate(ctx context.Context, raw string) (*core.Credential, error) {
	cred, err := j.parse(raw)
	if err != nil {
		return nil, err
	}

	revoked, err := j.denylist.IsRevoked(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("denylist lookup: %w", err)
	}
	if revoked {
		return nil, core.ErrCredentialInvalid
	}

	return cred, nil
}

// Rotate issues a replacement credential preserving the session binding and
// revokes the old one. Rotation outside the refresh window fails; callers
// holding a fresh credential have no reason to rotate it.
func (j *JWTTokenizer) Rotate(ctx context.Context, raw string) (string, *core.Credential, error) {
	cred, err := j.Validate(ctx, raw)
	if err != nil {
		return "", nil, err
	}

	lifetime := cred.ExpiresAt.Sub(cred.IssuedAt)
	refreshFrom := cred.ExpiresAt.Add(-time.Duration(float64(lifetime) * refreshFraction))
	if time.Now().Before(refreshFrom) {
		return "", nil, core.ErrCredentialInvalid
	}

	newRaw, newCred, err := j.Issue(cred.Address, cred.SessionID, cred.ActiveToken, cred.Permissions)
	if err != nil {
		return "", nil, err
	}

	if err := j.revokeUntil(ctx, cred.ID, cred.ExpiresAt); err != nil {
		return "", nil, err
	}

	return newRaw, newCred, nil
}

// Revoke denylists a credential id for the full credential lifetime. Without
// the original expiry at hand this is the safe upper bound.
func (j *JWTTokenizer) Revoke(ctx context.Context, credentialID string) error {
	return j.denylist.Revoke(ctx, credentialID, j.ttl)
}

func (j *JWTTokenizer) revokeUntil(ctx context.Context, credentialID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return j.denylist.Revoke(ctx, credentialID, ttl)
}

func (j *JWTTokenizer) parse(raw string) (*core.Credential, error) {
	token, err := jwt.ParseWithClaims(raw, &CredentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceCredential))
	if err != nil || !token.Valid {
		return nil, core.ErrCredentialInvalid
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || claims.SessionID == "" || claims.ID == "" {
		return nil, core.ErrCredentialInvalid
	}

	return &core.Credential{
		ID:          claims.ID,
		Address:     claims.Subject,
		SessionID:   claims.SessionID,
		ActiveToken: claims.ActiveToken,
		Permissions: claims.Permissions,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
