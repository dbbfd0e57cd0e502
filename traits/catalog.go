package traits

// Fixed trait catalogs. These enumerations are part of the collection's
// contract: token metadata referring to anything outside them is replaced by
// the documented default rather than rejected.

// Personalities is the closed set of persona archetypes.
var Personalities = []string{
	"sage", "jester", "stoic", "rebel", "dreamer",
	"mentor", "trickster", "guardian", "wanderer", "oracle",
}

// Styles is the closed set of speaking styles.
var Styles = []string{
	"concise", "poetic", "playful", "formal", "blunt",
	"whimsical", "scholarly", "streetwise", "dramatic", "soothing",
}

// ExpertiseTags is the closed set of expertise areas. Descriptors carry
// between two and four of them.
var ExpertiseTags = []string{
	"defi", "nft-markets", "smart-contracts", "cryptography", "gaming",
	"music", "art-history", "philosophy", "astronomy", "cooking",
	"travel", "memes", "trading", "governance", "security",
	"layer2", "folklore", "literature", "fitness", "cinema",
}

// Rarity tiers, least to most rare.
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

var rarityTiers = []string{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

// Defaults substituted for missing or out-of-range metadata fields.
const (
	DefaultPersonality = "sage"
	DefaultStyle       = "concise"

	MinExpertise = 2
	MaxExpertise = 4

	DefaultTemperature = 0.7
	MinTemperature     = 0.1
	MaxTemperature     = 1.5

	DefaultModifier = 0.5 // verbosity, humor, formality, energy
)

// DefaultExpertise is the expertise set substituted when metadata carries an
// unusable one.
var DefaultExpertise = []string{"philosophy", "memes"}

var (
	personalitySet = indexSet(Personalities)
	styleSet       = indexSet(Styles)
	expertiseSet   = indexSet(ExpertiseTags)
	raritySet      = indexSet(rarityTiers)
)

func indexSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// ValidPersonality reports whether tag is in the personality catalog.
func ValidPersonality(tag string) bool {
	_, ok := personalitySet[tag]
	return ok
}

// ValidStyle reports whether tag is in the style catalog.
func ValidStyle(tag string) bool {
	_, ok := styleSet[tag]
	return ok
}

// ValidExpertise reports whether tag is in the expertise catalog.
func ValidExpertise(tag string) bool {
	_, ok := expertiseSet[tag]
	return ok
}

// ValidRarity reports whether tier is a known rarity tier.
func ValidRarity(tier string) bool {
	_, ok := raritySet[tier]
	return ok
}
