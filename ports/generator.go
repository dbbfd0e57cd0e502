package ports

import (
	"context"

	"github.com/layer-3/rangda/core"
)

// Generator is the text-generation backend. The core hands it a rendered
// persona prompt plus the bounded conversation window and receives a single
// completion back; streaming and response shaping live behind this boundary.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, window []core.Message, mods core.Modifiers) (string, error)
}
