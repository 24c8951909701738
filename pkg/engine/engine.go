package engine

import (
	"context"

	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

// Engine is the contract every inference backend implements. The model,
// processor and config handles are loaded once and reused for every
// generation call; implementations must be safe for concurrent use.
type Engine interface {
	// Name identifies the backend, e.g. "ollama" or "llamacpp".
	Name() string

	// LoadModel verifies the model exists on the engine and returns the
	// model and preprocessor handles for it.
	LoadModel(ctx context.Context, modelID string) (*types.ModelHandle, *types.ProcessorHandle, error)

	// LoadConfig fetches the prompt-formatting configuration for a model.
	LoadConfig(ctx context.Context, modelID string) (*types.ModelConfig, error)

	// Generate runs one inference pass: formatted prompt plus the image at
	// imagePath, decoded according to opts. Returns the generated text.
	Generate(ctx context.Context, model *types.ModelHandle, processor *types.ProcessorHandle, prompt, imagePath string, opts types.GenerateOptions) (*types.GenerateResult, error)

	// Healthy reports whether the engine is reachable.
	Healthy(ctx context.Context) bool
}
