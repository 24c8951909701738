// Package answer turns one (image, question) pair into one answer string.
//
// The service owns the request-scoped temporary image artifact: each Analyze
// call writes the input image to a uniquely named PNG file, hands the path to
// the generation engine, and removes the file on every exit path. Engine
// failures are not translated; they propagate to the caller after cleanup.
package answer

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/loresico/gemma3-vision-demo/internal/utils"
	"github.com/loresico/gemma3-vision-demo/pkg/engine"
	"github.com/loresico/gemma3-vision-demo/pkg/prompt"
	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

const (
	// NoImageMessage is returned verbatim when Analyze is called without an
	// image. This is a normal outcome, not an error.
	NoImageMessage = "Please upload an image first."

	// DefaultQuestion substitutes for a blank or whitespace-only question.
	DefaultQuestion = "Describe this image in detail."
)

// Generation defaults, fixed per service instance.
const (
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.0
)

// ExampleQuestions are the canned questions offered by the form page.
var ExampleQuestions = []string{
	"Describe this image in detail",
	"What objects can you identify?",
	"What is the main subject?",
	"What type of location is this?",
	"Is this indoors or outdoors?",
}

// Service answers questions about images using a loaded multimodal model.
// The handles are loaded once in New and never mutated, so a single Service
// is safe for concurrent Analyze calls.
type Service struct {
	engine    engine.Engine
	model     *types.ModelHandle
	processor *types.ProcessorHandle
	config    *types.ModelConfig
	opts      types.GenerateOptions
	tempDir   string
	log       *logrus.Entry
}

// Option customizes a Service.
type Option func(*Service)

// WithGenerateOptions overrides the fixed generation parameters.
func WithGenerateOptions(opts types.GenerateOptions) Option {
	return func(s *Service) { s.opts = opts }
}

// WithTempDir sets the directory for temporary image artifacts. Empty means
// the system default.
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

// New loads the model, preprocessor and config for modelID from the engine
// and returns a ready service. A load failure here must abort startup; the
// service cannot answer anything without its handles.
func New(ctx context.Context, eng engine.Engine, modelID string, options ...Option) (*Service, error) {
	s := &Service{
		engine: eng,
		opts: types.GenerateOptions{
			Verbose:     false,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		log: logrus.WithField("component", "answer"),
	}
	for _, opt := range options {
		opt(s)
	}

	model, processor, err := eng.LoadModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	config, err := eng.LoadConfig(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load model config: %w", err)
	}

	s.model = model
	s.processor = processor
	s.config = config
	return s, nil
}

// Model returns the id of the loaded model.
func (s *Service) Model() string {
	if s.model == nil {
		return ""
	}
	return s.model.ID
}

// EngineName returns the name of the backing engine.
func (s *Service) EngineName() string {
	return s.engine.Name()
}

// Analyze answers a question about an image.
//
// A nil image returns NoImageMessage without touching disk or the engine. A
// question that trims to empty is replaced by DefaultQuestion; any other
// question is passed through untrimmed. The temporary PNG written for the
// engine is removed before Analyze returns, whether generation succeeds or
// fails.
func (s *Service) Analyze(ctx context.Context, img image.Image, question string) (string, error) {
	if img == nil {
		return NoImageMessage, nil
	}

	if strings.TrimSpace(question) == "" {
		question = DefaultQuestion
	}

	imagePath, err := s.saveTempPNG(img)
	if err != nil {
		return "", fmt.Errorf("failed to persist image: %w", err)
	}
	defer func() {
		// Missing file at cleanup time is fine.
		if utils.FileExists(imagePath) {
			if rmErr := os.Remove(imagePath); rmErr != nil {
				s.log.WithError(rmErr).WithField("path", imagePath).Warn("temp image cleanup failed")
			}
		}
	}()

	formatted, err := prompt.ApplyChatTemplate(s.processor, s.config, question, 1)
	if err != nil {
		return "", err
	}

	result, err := s.engine.Generate(ctx, s.model, s.processor, formatted, imagePath, s.opts)
	if err != nil {
		return "", err
	}

	return result.Text, nil
}

// saveTempPNG writes img to a uniquely named .png file and returns its path.
func (s *Service) saveTempPNG(img image.Image) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "vision-qa-*.png")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
