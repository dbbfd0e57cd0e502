package core

// Modifiers tune text generation for a persona. Temperature is the sampling
// temperature handed to the backend; the remaining values are normalized to
// [0, 1] and rendered into the system prompt.
type Modifiers struct {
	Temperature float64 `json:"temperature"`
	Verbosity   float64 `json:"verbosity"`
	Humor       float64 `json:"humor"`
	Formality   float64 `json:"formality"`
	Energy      float64 `json:"energy"`
}

// TraitDescriptor is the personality configuration derived from a token.
// Descriptors are immutable after first resolution; a token's traits never
// change for the lifetime of the collection.
type TraitDescriptor struct {
	TokenID     string    `json:"token_id"`
	Personality string    `json:"personality"`
	Style       string    `json:"style"`
	Expertise   []string  `json:"expertise"`
	Modifiers   Modifiers `json:"modifiers"`
	Rarity      string    `json:"rarity"`
}
