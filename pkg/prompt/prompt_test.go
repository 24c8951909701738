package prompt

import (
	"strings"
	"testing"

	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

func handles(modelID string) (*types.ProcessorHandle, *types.ModelConfig) {
	return &types.ProcessorHandle{ModelID: modelID}, &types.ModelConfig{ModelID: modelID}
}

func TestApplyChatTemplate(t *testing.T) {
	proc, cfg := handles("gemma3")

	got, err := ApplyChatTemplate(proc, cfg, "What is this?", 1)
	if err != nil {
		t.Fatalf("ApplyChatTemplate failed: %v", err)
	}

	if !strings.Contains(got, "What is this?") {
		t.Errorf("prompt missing question: %q", got)
	}
	if strings.Count(got, DefaultImageToken) != 1 {
		t.Errorf("expected exactly one image token in %q", got)
	}
	if !strings.HasPrefix(got, DefaultTurnStart+DefaultUserRole) {
		t.Errorf("prompt does not open a user turn: %q", got)
	}
	if !strings.HasSuffix(got, DefaultTurnStart+DefaultModelRole+"\n") {
		t.Errorf("prompt does not open the model turn: %q", got)
	}
}

func TestApplyChatTemplateImageCount(t *testing.T) {
	proc, cfg := handles("m")

	for _, n := range []int{0, 1, 3} {
		got, err := ApplyChatTemplate(proc, cfg, "q", n)
		if err != nil {
			t.Fatalf("numImages=%d: %v", n, err)
		}
		if c := strings.Count(got, DefaultImageToken); c != n {
			t.Errorf("numImages=%d: found %d image tokens", n, c)
		}
	}

	if _, err := ApplyChatTemplate(proc, cfg, "q", -1); err == nil {
		t.Error("negative image count should fail")
	}
}

func TestApplyChatTemplateCustomTokens(t *testing.T) {
	proc := &types.ProcessorHandle{ModelID: "m"}
	cfg := &types.ModelConfig{
		ModelID:    "m",
		ImageToken: "<image>",
		TurnStart:  "<|",
		TurnEnd:    "|>",
		UserRole:   "human",
		ModelRole:  "assistant",
	}

	got, err := ApplyChatTemplate(proc, cfg, "hello", 2)
	if err != nil {
		t.Fatalf("ApplyChatTemplate failed: %v", err)
	}
	if !strings.HasPrefix(got, "<|human\n") {
		t.Errorf("custom turn markers not applied: %q", got)
	}
	if strings.Count(got, "<image>") != 2 {
		t.Errorf("custom image token not applied twice: %q", got)
	}
}

func TestApplyChatTemplateMismatchedHandles(t *testing.T) {
	proc := &types.ProcessorHandle{ModelID: "a"}
	cfg := &types.ModelConfig{ModelID: "b"}

	if _, err := ApplyChatTemplate(proc, cfg, "q", 1); err == nil {
		t.Error("mismatched processor/config should fail")
	}
	if _, err := ApplyChatTemplate(nil, cfg, "q", 1); err == nil {
		t.Error("nil processor should fail")
	}
	if _, err := ApplyChatTemplate(proc, nil, "q", 1); err == nil {
		t.Error("nil config should fail")
	}
}

func TestApplyChatTemplateVerbatimQuestion(t *testing.T) {
	proc, cfg := handles("m")

	// The formatter never trims; question policy lives in the answer service.
	got, err := ApplyChatTemplate(proc, cfg, "  padded question  ", 1)
	if err != nil {
		t.Fatalf("ApplyChatTemplate failed: %v", err)
	}
	if !strings.Contains(got, "  padded question  ") {
		t.Errorf("question was not passed through verbatim: %q", got)
	}
}
