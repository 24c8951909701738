package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"

	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

// defaultTimeout bounds a single generation when the caller's context carries
// no deadline. Vision models on CPU can be slow, so this is generous.
const defaultTimeout = 300 * time.Second

// Client is an Ollama-backed inference engine.
type Client struct {
	client *api.Client
	log    *logrus.Entry
}

// NewClient creates a new Ollama engine client for the given server URL.
func NewClient(ollamaURL string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Keep only scheme and host; the api client appends its own paths.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client: api.NewClient(baseURL, http.DefaultClient),
		log:    logrus.WithField("engine", "ollama"),
	}, nil
}

// Name identifies the backend.
func (c *Client) Name() string { return "ollama" }

// LoadModel verifies the model is available on the server and returns its
// handles. A missing or unpullable model surfaces here, at startup.
func (c *Client) LoadModel(ctx context.Context, modelID string) (*types.ModelHandle, *types.ProcessorHandle, error) {
	if modelID == "" {
		return nil, nil, fmt.Errorf("model identifier is empty")
	}
	if _, err := c.client.Show(ctx, &api.ShowRequest{Model: modelID}); err != nil {
		return nil, nil, fmt.Errorf("model %q not available on ollama server: %w", modelID, err)
	}
	c.log.WithField("model", modelID).Info("model loaded")
	return &types.ModelHandle{ID: modelID}, &types.ProcessorHandle{ModelID: modelID}, nil
}

// LoadConfig fetches the prompt-formatting configuration for a model from the
// server's model metadata.
func (c *Client) LoadConfig(ctx context.Context, modelID string) (*types.ModelConfig, error) {
	resp, err := c.client.Show(ctx, &api.ShowRequest{Model: modelID})
	if err != nil {
		return nil, fmt.Errorf("load config for %q: %w", modelID, err)
	}
	return &types.ModelConfig{
		ModelID:  modelID,
		Family:   resp.Details.Family,
		Template: resp.Template,
	}, nil
}

// Generate runs one raw-prompt generation with the image at imagePath.
func (c *Client) Generate(ctx context.Context, model *types.ModelHandle, processor *types.ProcessorHandle, prompt, imagePath string, opts types.GenerateOptions) (*types.GenerateResult, error) {
	if model == nil || processor == nil {
		return nil, fmt.Errorf("engine not initialized")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	imgData, err := readImagePayload(imagePath)
	if err != nil {
		return nil, err
	}

	stream := opts.Verbose
	req := &api.GenerateRequest{
		Model:   model.ID,
		Prompt:  prompt,
		Raw:     true,
		Images:  []api.ImageData{imgData},
		Stream:  &stream,
		Options: normalizeOptions(opts),
	}

	start := time.Now()
	var b strings.Builder
	var evalCount, promptEvalCount int
	err = c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		if opts.Verbose && resp.Response != "" {
			c.log.WithField("model", model.ID).Debug(resp.Response)
		}
		if resp.Done {
			evalCount = resp.EvalCount
			promptEvalCount = resp.PromptEvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generate error: %v", err)
	}

	return &types.GenerateResult{
		Text:           b.String(),
		PromptTokens:   promptEvalCount,
		ResponseTokens: evalCount,
		DurationMs:     time.Since(start).Milliseconds(),
	}, nil
}

// Healthy reports whether the server answers a heartbeat.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.client.Heartbeat(ctx) == nil
}

// readImagePayload loads the image file and coerces it to the byte-array type
// the engine's API expects. All image payloads pass through here so a request
// can never reach the engine with a mistyped argument.
func readImagePayload(imagePath string) (api.ImageData, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("image file %s is empty", imagePath)
	}
	return api.ImageData(raw), nil
}

// normalizeOptions maps GenerateOptions onto the engine's options map with
// the exact numeric types its JSON decoder expects: num_predict must be an
// int and temperature a float64, or the server rejects the request.
func normalizeOptions(opts types.GenerateOptions) map[string]any {
	return map[string]any{
		"num_predict": int(opts.MaxTokens),
		"temperature": float64(opts.Temperature),
	}
}
