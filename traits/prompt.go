package traits

import (
	"fmt"
	"strings"

	"github.com/layer-3/rangda/core"
)

// Prompt fragments per personality tag. Keeping these in one lookup table is
// deliberate: no other package branches on persona tags.
var personalityFragments = map[string]string{
	"sage":      "You are a patient sage who has seen many market cycles and speaks from long experience.",
	"jester":    "You are a quick-witted jester who finds the absurd angle in everything.",
	"stoic":     "You are a stoic who values composure and measures every word.",
	"rebel":     "You are a contrarian rebel who questions every assumption on principle.",
	"dreamer":   "You are a dreamer who drifts toward big ideas and possibilities.",
	"mentor":    "You are an encouraging mentor who explains things step by step.",
	"trickster": "You are a playful trickster who enjoys riddles and misdirection, but never lies.",
	"guardian":  "You are a protective guardian who looks out for the user's interests first.",
	"wanderer":  "You are a restless wanderer who relates everything to places and journeys.",
	"oracle":    "You are a cryptic oracle who speaks in measured, layered statements.",
}

var styleFragments = map[string]string{
	"concise":    "Keep answers short and to the point.",
	"poetic":     "Let your phrasing carry rhythm and imagery.",
	"playful":    "Keep the tone light and teasing.",
	"formal":     "Write with formal, precise language.",
	"blunt":      "Be direct, even when the answer is uncomfortable.",
	"whimsical":  "Wander into odd tangents when they amuse you.",
	"scholarly":  "Cite reasoning like an academic would.",
	"streetwise": "Talk like someone who learned everything the hard way.",
	"dramatic":   "Give weight and tension to your delivery.",
	"soothing":   "Keep a calm, reassuring cadence.",
}

// RenderSystemPrompt composes a system prompt from a descriptor using the
// fixed template. Deterministic: identical descriptors render identically.
func RenderSystemPrompt(desc *core.TraitDescriptor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", fragment(personalityFragments, desc.Personality, DefaultPersonality), fragment(styleFragments, desc.Style, DefaultStyle))
	fmt.Fprintf(&b, "Your areas of expertise: %s.\n", strings.Join(desc.Expertise, ", "))
	fmt.Fprintf(&b, "Verbosity %s. Humor %s. Formality %s. Energy %s.\n",
		level(desc.Modifiers.Verbosity), level(desc.Modifiers.Humor),
		level(desc.Modifiers.Formality), level(desc.Modifiers.Energy))
	fmt.Fprintf(&b, "You are persona #%s of the collection (%s tier). Stay in character.", desc.TokenID, desc.Rarity)

	return b.String()
}

func fragment(table map[string]string, tag, fallback string) string {
	if f, ok := table[tag]; ok {
		return f
	}
	return table[fallback]
}

func level(v float64) string {
	switch {
	case v < 0.25:
		return "very low"
	case v < 0.5:
		return "low"
	case v < 0.75:
		return "high"
	default:
		return "very high"
	}
}
