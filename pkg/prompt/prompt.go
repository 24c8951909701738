// Package prompt formats user questions into model-ready chat prompts.
//
// Serving engines that accept raw prompts (Ollama raw mode, llama.cpp) expect
// the chat turn markers and image placeholder tokens of the model family to be
// present in the prompt text. The formatter builds that structure from the
// model config so the answer service never hardcodes family-specific tokens.
package prompt

import (
	"fmt"
	"strings"

	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

// Gemma 3 defaults, used when the engine reports no template metadata.
const (
	DefaultTurnStart  = "<start_of_turn>"
	DefaultTurnEnd    = "<end_of_turn>"
	DefaultImageToken = "<start_of_image>"
	DefaultUserRole   = "user"
	DefaultModelRole  = "model"
)

// ApplyChatTemplate renders a single-turn user prompt with numImages image
// placeholders followed by the question, and opens the model turn so the
// engine continues from there.
func ApplyChatTemplate(processor *types.ProcessorHandle, cfg *types.ModelConfig, question string, numImages int) (string, error) {
	if processor == nil || cfg == nil {
		return "", fmt.Errorf("prompt: processor and config are required")
	}
	if processor.ModelID != cfg.ModelID {
		return "", fmt.Errorf("prompt: processor is for model %q but config is for %q", processor.ModelID, cfg.ModelID)
	}
	if numImages < 0 {
		return "", fmt.Errorf("prompt: negative image count %d", numImages)
	}

	turnStart := orDefault(cfg.TurnStart, DefaultTurnStart)
	turnEnd := orDefault(cfg.TurnEnd, DefaultTurnEnd)
	imageToken := orDefault(cfg.ImageToken, DefaultImageToken)
	userRole := orDefault(cfg.UserRole, DefaultUserRole)
	modelRole := orDefault(cfg.ModelRole, DefaultModelRole)

	var b strings.Builder
	b.WriteString(turnStart)
	b.WriteString(userRole)
	b.WriteString("\n")
	for i := 0; i < numImages; i++ {
		b.WriteString(imageToken)
		b.WriteString("\n")
	}
	b.WriteString(question)
	b.WriteString(turnEnd)
	b.WriteString("\n")
	b.WriteString(turnStart)
	b.WriteString(modelRole)
	b.WriteString("\n")
	return b.String(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
