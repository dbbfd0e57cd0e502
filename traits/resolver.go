// Package traits derives persona descriptors from token metadata and renders
// them into generation parameters. Descriptors are immutable per token and
// cached indefinitely: a token's traits never change.
package traits

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/internal/fieldcrypt"
)

// derivationVersion tags the keyed-hash derivation algorithm. Bump only with
// a migration plan: changing it changes every derived persona.
const derivationVersion = 1

// metadataBlob is the on-chain trait block shape. Pointer fields distinguish
// "absent" from zero values during fail-soft validation.
type metadataBlob struct {
	Personality string   `json:"personality"`
	Style       string   `json:"style"`
	Expertise   []string `json:"expertise"`
	Modifiers   struct {
		Temperature *float64 `json:"temperature"`
		Verbosity   *float64 `json:"verbosity"`
		Humor       *float64 `json:"humor"`
		Formality   *float64 `json:"formality"`
		Energy      *float64 `json:"energy"`
	} `json:"modifiers"`
	Rarity string `json:"rarity"`
}

// Resolver turns (tokenID, metadata) into trait descriptors.
type Resolver struct {
	salt   []byte
	cipher *fieldcrypt.Cipher
	cache  *gocache.Cache
}

// NewResolver creates a resolver. salt keys the deterministic derivation for
// metadata-less tokens; cipher opens encrypted metadata blobs and may be nil
// when the collection stores plaintext metadata.
func NewResolver(salt []byte, cipher *fieldcrypt.Cipher) *Resolver {
	return &Resolver{
		salt:   salt,
		cipher: cipher,
		cache:  gocache.New(gocache.NoExpiration, 0),
	}
}

// Resolve returns the trait descriptor for a token. Results are cached
// forever; repeated calls return identical descriptors.
func (r *Resolver) Resolve(tokenID string, metadata []byte) (*core.TraitDescriptor, error) {
	if cached, ok := r.cache.Get(tokenID); ok {
		return cached.(*core.TraitDescriptor), nil
	}

	desc := r.resolve(tokenID, metadata)
	r.cache.Set(tokenID, desc, gocache.NoExpiration)
	return desc, nil
}

func (r *Resolver) resolve(tokenID string, metadata []byte) *core.TraitDescriptor {
	if len(metadata) > 0 {
		if r.cipher != nil {
			opened, err := r.cipher.Open(metadata)
			if err == nil {
				metadata = opened
			} else {
				metadata = nil
			}
		}
		var blob metadataBlob
		if metadata != nil && json.Unmarshal(metadata, &blob) == nil {
			return r.fromMetadata(tokenID, &blob)
		}
	}
	return r.derive(tokenID)
}

// fromMetadata validates each field against the catalogs, replacing anything
// missing or out of range with its default. Nothing here rejects.
func (r *Resolver) fromMetadata(tokenID string, blob *metadataBlob) *core.TraitDescriptor {
	desc := &core.TraitDescriptor{
		TokenID:     tokenID,
		Personality: blob.Personality,
		Style:       blob.Style,
		Rarity:      blob.Rarity,
	}

	if !ValidPersonality(desc.Personality) {
		desc.Personality = DefaultPersonality
	}
	if !ValidStyle(desc.Style) {
		desc.Style = DefaultStyle
	}

	for _, tag := range blob.Expertise {
		if ValidExpertise(tag) && !contains(desc.Expertise, tag) && len(desc.Expertise) < MaxExpertise {
			desc.Expertise = append(desc.Expertise, tag)
		}
	}
	if len(desc.Expertise) < MinExpertise {
		desc.Expertise = append([]string{}, DefaultExpertise...)
	}

	desc.Modifiers = core.Modifiers{
		Temperature: modifierOrDefault(blob.Modifiers.Temperature, MinTemperature, MaxTemperature, DefaultTemperature),
		Verbosity:   modifierOrDefault(blob.Modifiers.Verbosity, 0, 1, DefaultModifier),
		Humor:       modifierOrDefault(blob.Modifiers.Humor, 0, 1, DefaultModifier),
		Formality:   modifierOrDefault(blob.Modifiers.Formality, 0, 1, DefaultModifier),
		Energy:      modifierOrDefault(blob.Modifiers.Energy, 0, 1, DefaultModifier),
	}

	if !ValidRarity(desc.Rarity) {
		desc.Rarity = r.deriveRarity(tokenID)
	}

	return desc
}

// derive builds a descriptor from a keyed hash of the token id. Stable for a
// given salt, unpredictable without it.
func (r *Resolver) derive(tokenID string) *core.TraitDescriptor {
	h := r.digest(tokenID)

	desc := &core.TraitDescriptor{
		TokenID:     tokenID,
		Personality: Personalities[int(h[0])%len(Personalities)],
		Style:       Styles[int(h[1])%len(Styles)],
		Rarity:      rarityFromByte(h[13]),
	}

	// Walk successive digest bytes until we have enough distinct tags.
	count := MinExpertise + int(h[2])%(MaxExpertise-MinExpertise+1)
	for i := 3; len(desc.Expertise) < count && i < len(h); i++ {
		tag := ExpertiseTags[int(h[i])%len(ExpertiseTags)]
		if !contains(desc.Expertise, tag) {
			desc.Expertise = append(desc.Expertise, tag)
		}
	}

	desc.Modifiers = core.Modifiers{
		Temperature: MinTemperature + unit(h[20])*(MaxTemperature-MinTemperature),
		Verbosity:   unit(h[21]),
		Humor:       unit(h[22]),
		Formality:   unit(h[23]),
		Energy:      unit(h[24]),
	}

	return desc
}

func (r *Resolver) deriveRarity(tokenID string) string {
	return rarityFromByte(r.digest(tokenID)[13])
}

func (r *Resolver) digest(tokenID string) []byte {
	mac := hmac.New(sha256.New, r.salt)
	fmt.Fprintf(mac, "rangda-traits-v%d:%s", derivationVersion, tokenID)
	return mac.Sum(nil)
}

// rarityFromByte maps a digest byte to a tier: roughly 60% common,
// 25% uncommon, 10% rare, 4% epic, 1% legendary.
func rarityFromByte(b byte) string {
	switch {
	case b < 154:
		return RarityCommon
	case b < 218:
		return RarityUncommon
	case b < 243:
		return RarityRare
	case b < 253:
		return RarityEpic
	default:
		return RarityLegendary
	}
}

func unit(b byte) float64 {
	return float64(b) / 255
}

func modifierOrDefault(v *float64, min, max, def float64) float64 {
	if v == nil || *v < min || *v > max {
		return def
	}
	return *v
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
