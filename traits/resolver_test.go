package traits

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/rangda/internal/fieldcrypt"
)

var testSalt = []byte("fixed-test-salt")

func TestResolveDerivedDeterministic(t *testing.T) {
	a := NewResolver(testSalt, nil)
	b := NewResolver(testSalt, nil)

	descA, err := a.Resolve("42", nil)
	require.NoError(t, err)
	descB, err := b.Resolve("42", nil)
	require.NoError(t, err)

	assert.Equal(t, descA, descB)
}

func TestResolveCached(t *testing.T) {
	r := NewResolver(testSalt, nil)

	first, err := r.Resolve("7", nil)
	require.NoError(t, err)
	second, err := r.Resolve("7", nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestResolveDerivedWellFormed(t *testing.T) {
	r := NewResolver(testSalt, nil)

	for i := 0; i < 200; i++ {
		desc, err := r.Resolve(fmt.Sprintf("%d", i), nil)
		require.NoError(t, err)

		assert.True(t, ValidPersonality(desc.Personality), "token %d personality %q", i, desc.Personality)
		assert.True(t, ValidStyle(desc.Style), "token %d style %q", i, desc.Style)
		assert.True(t, ValidRarity(desc.Rarity), "token %d rarity %q", i, desc.Rarity)
		assert.GreaterOrEqual(t, len(desc.Expertise), MinExpertise)
		assert.LessOrEqual(t, len(desc.Expertise), MaxExpertise)
		for _, tag := range desc.Expertise {
			assert.True(t, ValidExpertise(tag))
		}
		assert.GreaterOrEqual(t, desc.Modifiers.Temperature, MinTemperature)
		assert.LessOrEqual(t, desc.Modifiers.Temperature, MaxTemperature)
	}
}

func TestResolveDifferentSaltsDiverge(t *testing.T) {
	a := NewResolver([]byte("salt-a"), nil)
	b := NewResolver([]byte("salt-b"), nil)

	// Across enough tokens the two salts must not agree everywhere.
	same := 0
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("%d", i)
		descA, _ := a.Resolve(id, nil)
		descB, _ := b.Resolve(id, nil)
		if descA.Personality == descB.Personality && descA.Style == descB.Style {
			same++
		}
	}
	assert.Less(t, same, 50)
}

func TestResolveMetadataValid(t *testing.T) {
	r := NewResolver(testSalt, nil)

	meta := []byte(`{
		"personality": "jester",
		"style": "poetic",
		"expertise": ["defi", "memes", "folklore"],
		"modifiers": {"temperature": 1.1, "verbosity": 0.9, "humor": 1.0, "formality": 0.1, "energy": 0.8},
		"rarity": "epic"
	}`)

	desc, err := r.Resolve("100", meta)
	require.NoError(t, err)

	assert.Equal(t, "jester", desc.Personality)
	assert.Equal(t, "poetic", desc.Style)
	assert.Equal(t, []string{"defi", "memes", "folklore"}, desc.Expertise)
	assert.Equal(t, 1.1, desc.Modifiers.Temperature)
	assert.Equal(t, "epic", desc.Rarity)
}

func TestResolveMetadataFailSoft(t *testing.T) {
	r := NewResolver(testSalt, nil)

	meta := []byte(`{
		"personality": "villain",
		"style": "poetic",
		"expertise": ["defi", "not-a-tag", "defi"],
		"modifiers": {"temperature": 9.5, "humor": -2},
		"rarity": "mythic"
	}`)

	desc, err := r.Resolve("101", meta)
	require.NoError(t, err)

	assert.Equal(t, DefaultPersonality, desc.Personality, "unknown personality falls back")
	assert.Equal(t, "poetic", desc.Style, "valid fields survive")
	assert.Equal(t, DefaultExpertise, desc.Expertise, "single valid tag is below the minimum")
	assert.Equal(t, DefaultTemperature, desc.Modifiers.Temperature)
	assert.Equal(t, DefaultModifier, desc.Modifiers.Humor)
	assert.Equal(t, DefaultModifier, desc.Modifiers.Verbosity, "missing modifier defaults")
	assert.True(t, ValidRarity(desc.Rarity), "unknown rarity replaced by derived tier")
}

func TestResolveMetadataExpertiseCap(t *testing.T) {
	r := NewResolver(testSalt, nil)

	meta := []byte(`{"expertise": ["defi", "memes", "gaming", "music", "travel", "cinema"]}`)
	desc, err := r.Resolve("102", meta)
	require.NoError(t, err)

	assert.Len(t, desc.Expertise, MaxExpertise)
}

func TestResolveGarbageMetadataDerives(t *testing.T) {
	r := NewResolver(testSalt, nil)

	fromGarbage, err := r.Resolve("103", []byte("{{{{not json"))
	require.NoError(t, err)

	derived := NewResolver(testSalt, nil)
	fromNil, err := derived.Resolve("103", nil)
	require.NoError(t, err)

	assert.Equal(t, fromNil, fromGarbage)
}

func TestResolveEncryptedMetadata(t *testing.T) {
	cipher, err := fieldcrypt.Derive([]byte("master"), "traits")
	require.NoError(t, err)

	plain := []byte(`{"personality": "oracle", "style": "formal", "expertise": ["cryptography", "astronomy"]}`)
	sealed, err := cipher.Seal(plain)
	require.NoError(t, err)

	r := NewResolver(testSalt, cipher)
	desc, err := r.Resolve("200", sealed)
	require.NoError(t, err)

	assert.Equal(t, "oracle", desc.Personality)
	assert.Equal(t, "formal", desc.Style)
}

func TestResolveUndecryptableMetadataDerives(t *testing.T) {
	cipherA, err := fieldcrypt.Derive([]byte("master-a"), "traits")
	require.NoError(t, err)
	cipherB, err := fieldcrypt.Derive([]byte("master-b"), "traits")
	require.NoError(t, err)

	sealed, err := cipherA.Seal([]byte(`{"personality": "oracle"}`))
	require.NoError(t, err)

	r := NewResolver(testSalt, cipherB)
	desc, err := r.Resolve("201", sealed)
	require.NoError(t, err)

	// Falls back to the keyed-hash derivation rather than failing.
	assert.True(t, ValidPersonality(desc.Personality))
}
