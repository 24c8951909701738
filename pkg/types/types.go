package types

// ModelHandle is an opaque reference to a set of model weights loaded on the
// serving engine. Created once at startup and shared read-only between
// concurrent requests.
type ModelHandle struct {
	ID string `json:"id"`
}

// ProcessorHandle references the input preprocessor paired 1:1 with a
// ModelHandle. Same lifecycle as the model handle.
type ProcessorHandle struct {
	ModelID string `json:"model_id"`
}

// ModelConfig describes the model-specific settings needed to format prompts.
type ModelConfig struct {
	ModelID    string `json:"model_id"`
	Family     string `json:"family"`
	Template   string `json:"template,omitempty"`
	ImageToken string `json:"image_token"`
	TurnStart  string `json:"turn_start"`
	TurnEnd    string `json:"turn_end"`
	UserRole   string `json:"user_role"`
	ModelRole  string `json:"model_role"`
}

// GenerateOptions holds the decoding parameters for one generation call.
type GenerateOptions struct {
	Verbose     bool    `json:"verbose"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// GenerateResult carries the output of one generation call.
type GenerateResult struct {
	Text           string `json:"text"`
	PromptTokens   int    `json:"prompt_tokens,omitempty"`
	ResponseTokens int    `json:"response_tokens,omitempty"`
	DurationMs     int64  `json:"duration_ms,omitempty"`
}
