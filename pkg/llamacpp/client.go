package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

const defaultTimeout = 300 * time.Second

// Client is an inference engine backed by any OpenAI-compatible server,
// llama.cpp's llama-server in particular.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// OpenAI-compatible message format
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewClient creates a new llama.cpp engine client.
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		log: logrus.WithField("engine", "llamacpp"),
	}, nil
}

// Name identifies the backend.
func (c *Client) Name() string { return "llamacpp" }

// LoadModel checks the server's model listing for the requested model.
// llama.cpp serves a single preloaded model, often under a file-path id, so a
// lone mismatched entry is accepted with a warning rather than rejected.
func (c *Client) LoadModel(ctx context.Context, modelID string) (*types.ModelHandle, *types.ProcessorHandle, error) {
	if modelID == "" {
		return nil, nil, fmt.Errorf("model identifier is empty")
	}

	list, err := c.listModels(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("model %q not available on llama.cpp server: %w", modelID, err)
	}
	if len(list.Data) == 0 {
		return nil, nil, fmt.Errorf("llama.cpp server at %s has no model loaded", c.baseURL)
	}

	found := false
	for _, m := range list.Data {
		if m.ID == modelID || strings.Contains(m.ID, modelID) {
			found = true
			break
		}
	}
	if !found {
		c.log.WithFields(logrus.Fields{
			"requested": modelID,
			"serving":   list.Data[0].ID,
		}).Warn("server is not serving the requested model id, using what it has")
	}

	c.log.WithField("model", modelID).Info("model loaded")
	return &types.ModelHandle{ID: modelID}, &types.ProcessorHandle{ModelID: modelID}, nil
}

// LoadConfig returns the prompt configuration for a model. The OpenAI API
// exposes no template metadata, so the formatter's defaults apply.
func (c *Client) LoadConfig(ctx context.Context, modelID string) (*types.ModelConfig, error) {
	if _, err := c.listModels(ctx); err != nil {
		return nil, fmt.Errorf("load config for %q: %w", modelID, err)
	}
	return &types.ModelConfig{ModelID: modelID}, nil
}

// Generate runs one chat completion with the prompt text and the image at
// imagePath attached as a data URL.
func (c *Client) Generate(ctx context.Context, model *types.ModelHandle, processor *types.ProcessorHandle, prompt, imagePath string, opts types.GenerateOptions) (*types.GenerateResult, error) {
	if model == nil || processor == nil {
		return nil, fmt.Errorf("engine not initialized")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	content := []ContentPart{
		{Type: "text", Text: prompt},
		{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
			},
		},
	}

	req := ChatCompletionRequest{
		Model: model.ID,
		Messages: []Message{
			{Role: "user", Content: content},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}

	start := time.Now()
	respBody, err := c.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	text, err := extractText(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		c.log.WithField("model", model.ID).Debug(text)
	}

	return &types.GenerateResult{
		Text:           text,
		PromptTokens:   resp.Usage.PromptTokens,
		ResponseTokens: resp.Usage.CompletionTokens,
		DurationMs:     time.Since(start).Milliseconds(),
	}, nil
}

// Healthy reports whether the server's health endpoint answers.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// extractText pulls the text out of a response message (string and
// content-part array formats both occur in the wild).
func extractText(content interface{}) (string, error) {
	switch v := content.(type) {
	case string:
		return v, nil
	case []interface{}:
		for _, item := range v {
			if partMap, ok := item.(map[string]interface{}); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no text content in response")
}

func (c *Client) listModels(ctx context.Context) (*modelList, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var list modelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %v", err)
	}
	return &list, nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
