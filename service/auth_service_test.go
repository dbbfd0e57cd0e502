package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/rangda/adapters/oracle"
	"github.com/layer-3/rangda/adapters/sessions"
	"github.com/layer-3/rangda/adapters/store"
	"github.com/layer-3/rangda/adapters/tokenizer"
	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/internal/eth"
	"github.com/layer-3/rangda/traits"
)

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return &wallet{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w *wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := ethcrypto.Sign(eth.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig)
}

type fixture struct {
	svc    *AuthService
	oracle *oracle.MemoryOracle
	store  *sessions.MemoryStore
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	mem := oracle.NewMemoryOracle()
	sessionStore := sessions.NewMemoryStore(time.Hour, time.Minute)
	tk := tokenizer.NewJWTTokenizer(signKey, store.NewMemoryDenylist(), 30*time.Minute)
	resolver := traits.NewResolver([]byte("fixed-test-salt"), nil)

	return &fixture{
		svc:    NewAuthService(mem, tk, sessionStore, resolver, nil, log, cfg),
		oracle: mem,
		store:  sessionStore,
	}
}

// login runs the full challenge/sign/verify flow for a wallet claiming tokenID.
func (f *fixture) login(t *testing.T, w *wallet, tokenID string) (*LoginResult, error) {
	t.Helper()
	challenge, err := f.svc.RequestChallenge(w.address, tokenID)
	require.NoError(t, err)
	return f.svc.Login(context.Background(), w.address, tokenID, challenge.Message, w.sign(t, challenge.Message))
}

func TestRequestChallengeInvalidInput(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.RequestChallenge("not-an-address", "1")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.RequestChallenge("0x1111111111111111111111111111111111111111", "token-one")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestLoginHappyPath(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)
	f.oracle.SetOwner("2", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RawCredential)
	assert.ElementsMatch(t, []string{"1", "2"}, result.OwnedTokens)
	assert.Equal(t, "1", result.Traits.TokenID)

	session, err := f.store.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "1", session.ActiveToken)
	assert.Equal(t, eth.NormalizeAddress(w.address), session.Address)

	cred, liveSession, err := f.svc.ValidateCredential(context.Background(), result.RawCredential)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, cred.SessionID)
	assert.Equal(t, result.SessionID, liveSession.ID)
}

func TestLoginNonceReplay(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	challenge, err := f.svc.RequestChallenge(w.address, "1")
	require.NoError(t, err)
	sig := w.sign(t, challenge.Message)

	_, err = f.svc.Login(context.Background(), w.address, "1", challenge.Message, sig)
	require.NoError(t, err)

	// Replaying the consumed challenge must fail cleanly, not double-create.
	_, err = f.svc.Login(context.Background(), w.address, "1", challenge.Message, sig)
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
}

func TestLoginUnknownNonce(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	forged := "Rangda wants you to chat as persona #1\n\nAddress: " + w.address + "\nToken: 1\nNonce: deadbeef\nIssued At: 2026-01-01T00:00:00Z"
	_, err := f.svc.Login(context.Background(), w.address, "1", forged, w.sign(t, forged))
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
}

func TestLoginExpiredChallenge(t *testing.T) {
	f := newFixture(t, Config{ChallengeTTL: 10 * time.Millisecond})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	challenge, err := f.svc.RequestChallenge(w.address, "1")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = f.svc.Login(context.Background(), w.address, "1", challenge.Message, w.sign(t, challenge.Message))
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
}

func TestLoginTamperedMessage(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)
	f.oracle.SetOwner("99", w.address)

	challenge, err := f.svc.RequestChallenge(w.address, "1")
	require.NoError(t, err)

	// Keep the nonce line but claim another token.
	tampered := strings.ReplaceAll(challenge.Message, "Token: 1", "Token: 99")
	_, err = f.svc.Login(context.Background(), w.address, "99", tampered, w.sign(t, tampered))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestLoginInvalidSignature(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	other := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	challenge, err := f.svc.RequestChallenge(w.address, "1")
	require.NoError(t, err)

	// Signed by the wrong key.
	_, err = f.svc.Login(context.Background(), w.address, "1", challenge.Message, other.sign(t, challenge.Message))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestLoginNotOwner(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	rival := newWallet(t)
	f.oracle.SetOwner("1", rival.address)

	_, err := f.login(t, w, "1")
	assert.ErrorIs(t, err, core.ErrNotOwner)
}

func TestLoginOracleUnavailable(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)
	f.oracle.Unavailable = true

	_, err := f.login(t, w, "1")
	assert.ErrorIs(t, err, core.ErrOracleUnavailable)
}

func TestLoginReplacesPriorSession(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	first, err := f.login(t, w, "1")
	require.NoError(t, err)

	second, err := f.login(t, w, "1")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// The old credential dies with its session.
	_, _, err = f.svc.ValidateCredential(context.Background(), first.RawCredential)
	assert.ErrorIs(t, err, core.ErrCredentialInvalid)

	_, _, err = f.svc.ValidateCredential(context.Background(), second.RawCredential)
	assert.NoError(t, err)
}

func TestConcurrentLoginsOneSessionSurvives(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	challengeA, err := f.svc.RequestChallenge(w.address, "1")
	require.NoError(t, err)
	challengeB, err := f.svc.RequestChallenge(w.address, "1")
	require.NoError(t, err)

	results := make([]*LoginResult, 2)
	var wg sync.WaitGroup
	for i, ch := range []*core.Challenge{challengeA, challengeB} {
		wg.Add(1)
		go func(i int, msg string) {
			defer wg.Done()
			res, err := f.svc.Login(context.Background(), w.address, "1", msg, w.sign(t, msg))
			if err == nil {
				results[i] = res
			}
		}(i, ch.Message)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	valid := 0
	for _, res := range results {
		if _, _, err := f.svc.ValidateCredential(context.Background(), res.RawCredential); err == nil {
			valid++
		}
	}
	assert.Equal(t, 1, valid, "exactly one of the racing credentials stays valid")
}

func TestSwitchActiveToken(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)
	f.oracle.SetOwner("2", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)

	descriptor, err := f.svc.SwitchActiveToken(context.Background(), result.SessionID, "2")
	require.NoError(t, err)
	assert.Equal(t, "2", descriptor.TokenID)
	assert.NotEqual(t, result.Traits, descriptor)

	session, err := f.store.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "2", session.ActiveToken)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, core.MessageTypeSwitch, session.Messages[0].Type)
	assert.Equal(t, "1", session.Messages[0].From)
	assert.Equal(t, "2", session.Messages[0].To)
}

func TestSwitchNotOwned(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)
	f.oracle.SetOwner("2", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)

	_, err = f.svc.SwitchActiveToken(context.Background(), result.SessionID, "3")
	assert.ErrorIs(t, err, core.ErrNotOwned)

	session, err := f.store.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "1", session.ActiveToken, "failed switch leaves the session untouched")
	assert.Empty(t, session.Messages)
}

func TestSwitchRateLimit(t *testing.T) {
	f := newFixture(t, Config{SwitchLimit: 10})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)
	f.oracle.SetOwner("2", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)

	targets := []string{"2", "1"}
	for i := 0; i < 10; i++ {
		_, err := f.svc.SwitchActiveToken(context.Background(), result.SessionID, targets[i%2])
		require.NoError(t, err, "switch %d", i+1)
	}

	// Active token is "1" after ten alternating switches; the eleventh must
	// be refused without mutating anything.
	_, err = f.svc.SwitchActiveToken(context.Background(), result.SessionID, "2")
	assert.ErrorIs(t, err, core.ErrRateLimited)

	session, err := f.store.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "1", session.ActiveToken)
	assert.Len(t, session.SwitchTimes, 10)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), result.RawCredential))

	_, _, err = f.svc.ValidateCredential(context.Background(), result.RawCredential)
	assert.ErrorIs(t, err, core.ErrCredentialInvalid)

	_, err = f.store.Get(result.SessionID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestRevokeAddress(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeAddress(context.Background(), w.address))

	_, _, err = f.svc.ValidateCredential(context.Background(), result.RawCredential)
	assert.ErrorIs(t, err, core.ErrCredentialInvalid)

	assert.ErrorIs(t, f.svc.RevokeAddress(context.Background(), w.address), core.ErrSessionNotFound)
}

func TestRotateDeadSession(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)

	f.store.Remove(result.SessionID)

	_, _, err = f.svc.Rotate(context.Background(), result.RawCredential)
	assert.ErrorIs(t, err, core.ErrCredentialInvalid)
}

// An owner of tokens 1 and 2 authenticates with 1, switches to 2, then
// tries 3.
func TestOwnershipScenario(t *testing.T) {
	f := newFixture(t, Config{})
	w := newWallet(t)
	f.oracle.SetOwner("1", w.address)
	f.oracle.SetOwner("2", w.address)

	result, err := f.login(t, w, "1")
	require.NoError(t, err)
	t1 := result.Traits

	t2, err := f.svc.SwitchActiveToken(context.Background(), result.SessionID, "2")
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)

	session, _ := f.store.Get(result.SessionID)
	assert.Equal(t, "2", session.ActiveToken)
	assert.Len(t, session.Messages, 1)

	_, err = f.svc.SwitchActiveToken(context.Background(), result.SessionID, "3")
	assert.ErrorIs(t, err, core.ErrNotOwned)

	session, _ = f.store.Get(result.SessionID)
	assert.Equal(t, "2", session.ActiveToken)
	assert.Len(t, session.Messages, 1)
}
