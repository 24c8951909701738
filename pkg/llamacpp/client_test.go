package llamacpp

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

func writeTestPNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{0, 128, 255, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode temp png: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, chatHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "gemma-3-4b-it"}},
		})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if chatHandler != nil {
		mux.HandleFunc("/v1/chat/completions", chatHandler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadModel(t *testing.T) {
	srv := newTestServer(t, nil)
	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	model, processor, err := c.LoadModel(context.Background(), "gemma-3-4b-it")
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if model.ID != "gemma-3-4b-it" {
		t.Errorf("model id = %q", model.ID)
	}
	if processor.ModelID != model.ID {
		t.Error("processor not paired with model")
	}

	if _, _, err := c.LoadModel(context.Background(), ""); err == nil {
		t.Error("empty model id should fail")
	}
}

func TestLoadModelServerDown(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, _, err := c.LoadModel(context.Background(), "gemma-3-4b-it"); err == nil {
		t.Error("unreachable server should fail model load")
	}
}

func TestGenerate(t *testing.T) {
	var gotReq ChatCompletionRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "A blue square."}}},
			Usage:   Usage{PromptTokens: 10, CompletionTokens: 5},
		})
	})

	c, _ := NewClient(srv.URL)
	model := &types.ModelHandle{ID: "gemma-3-4b-it"}
	processor := &types.ProcessorHandle{ModelID: model.ID}
	opts := types.GenerateOptions{MaxTokens: 300, Temperature: 0.0}

	result, err := c.Generate(context.Background(), model, processor, "describe", writeTestPNG(t), opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Text != "A blue square." {
		t.Errorf("text = %q", result.Text)
	}
	if result.ResponseTokens != 5 {
		t.Errorf("response tokens = %d, want 5", result.ResponseTokens)
	}

	// Request carries the decoding parameters and the image as a data URL.
	if gotReq.MaxTokens != 300 || gotReq.Temperature != 0.0 {
		t.Errorf("request options = (%d, %f)", gotReq.MaxTokens, gotReq.Temperature)
	}
	if len(gotReq.Messages) != 1 {
		t.Fatalf("message count = %d", len(gotReq.Messages))
	}
	parts, ok := gotReq.Messages[0].Content.([]interface{})
	if !ok {
		t.Fatalf("content is %T, want content parts", gotReq.Messages[0].Content)
	}
	foundImage := false
	for _, p := range parts {
		pm, _ := p.(map[string]interface{})
		if pm["type"] == "image_url" {
			iu, _ := pm["image_url"].(map[string]interface{})
			url, _ := iu["url"].(string)
			if strings.HasPrefix(url, "data:image/png;base64,") {
				foundImage = true
			}
		}
	}
	if !foundImage {
		t.Error("request carries no base64 image data URL")
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	})

	c, _ := NewClient(srv.URL)
	model := &types.ModelHandle{ID: "m"}
	processor := &types.ProcessorHandle{ModelID: "m"}

	_, err := c.Generate(context.Background(), model, processor, "p", writeTestPNG(t), types.GenerateOptions{MaxTokens: 10})
	if err == nil {
		t.Error("server error should propagate")
	}
}

func TestGenerateMissingImage(t *testing.T) {
	srv := newTestServer(t, nil)
	c, _ := NewClient(srv.URL)
	model := &types.ModelHandle{ID: "m"}
	processor := &types.ProcessorHandle{ModelID: "m"}

	_, err := c.Generate(context.Background(), model, processor, "p", "/does/not/exist.png", types.GenerateOptions{})
	if err == nil {
		t.Error("missing image file should fail")
	}
}

func TestHealthy(t *testing.T) {
	srv := newTestServer(t, nil)
	c, _ := NewClient(srv.URL)
	if !c.Healthy(context.Background()) {
		t.Error("healthy server reported unhealthy")
	}

	down, _ := NewClient("http://127.0.0.1:1")
	if down.Healthy(context.Background()) {
		t.Error("unreachable server reported healthy")
	}
}

func TestExtractText(t *testing.T) {
	if got, err := extractText("plain"); err != nil || got != "plain" {
		t.Errorf("string content: got %q, %v", got, err)
	}

	parts := []interface{}{
		map[string]interface{}{"type": "text", "text": "from parts"},
	}
	if got, err := extractText(parts); err != nil || got != "from parts" {
		t.Errorf("parts content: got %q, %v", got, err)
	}

	if _, err := extractText([]interface{}{}); err == nil {
		t.Error("empty parts should fail")
	}
}
