// Package visiondemo wires a pretrained multimodal model to an image Q&A
// service.
//
// The heavy lifting (tokenization, vision encoding, decoding) is delegated to
// an external serving engine; this library provides the glue: engine adapters
// for Ollama and llama.cpp, chat-prompt formatting, and an answer service with
// strict temp-file discipline.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		visiondemo "github.com/loresico/gemma3-vision-demo"
//	)
//
//	func main() {
//		ctx := context.Background()
//		app, err := visiondemo.New(ctx, "ollama", "", "gemma3:4b")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		img, err := app.LoadImage("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		text, err := app.Analyze(ctx, img, "What is the main subject?")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(text)
//	}
//
// Calling Analyze without an image returns a fixed advisory string, and a
// blank question is replaced by a default one; see pkg/answer for the exact
// policy.
package visiondemo

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/loresico/gemma3-vision-demo/pkg/answer"
	"github.com/loresico/gemma3-vision-demo/pkg/engine"
	"github.com/loresico/gemma3-vision-demo/pkg/llamacpp"
	"github.com/loresico/gemma3-vision-demo/pkg/ollama"
	"github.com/loresico/gemma3-vision-demo/pkg/processing"
)

// Version of the vision demo library
const Version = "1.0.0"

// DefaultModel is loaded when no model id is given.
const DefaultModel = "mlx-community/gemma-3-4b-it-8bit"

// App bundles an engine and a ready answer service for library consumers.
type App struct {
	Engine  engine.Engine
	Service *answer.Service

	proc *processing.Processor
}

// New connects to the named backend ("ollama" or "llamacpp"), loads the
// model, and returns a ready App. An empty serverURL picks the backend's
// default address; an empty modelID loads DefaultModel.
func New(ctx context.Context, backend, serverURL, modelID string, options ...answer.Option) (*App, error) {
	if modelID == "" {
		modelID = DefaultModel
	}

	var eng engine.Engine
	var err error
	switch backend {
	case "ollama":
		if serverURL == "" {
			serverURL = "http://localhost:11434"
		}
		eng, err = ollama.NewClient(serverURL)
	case "llamacpp":
		eng, err = llamacpp.NewClient(serverURL)
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}
	if err != nil {
		return nil, err
	}

	svc, err := answer.New(ctx, eng, modelID, options...)
	if err != nil {
		return nil, err
	}

	return &App{
		Engine:  eng,
		Service: svc,
		proc:    processing.NewProcessor(),
	}, nil
}

// Analyze answers a question about an image.
func (a *App) Analyze(ctx context.Context, img image.Image, question string) (string, error) {
	return a.Service.Analyze(ctx, img, question)
}

// LoadImage loads an image from file (PNG, JPEG, GIF or WebP).
func (a *App) LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()
	return a.proc.DecodeUpload(f)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
