package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultModelID is the model loaded when nothing else is configured.
const DefaultModelID = "mlx-community/gemma-3-4b-it-8bit"

type Config struct {
	Server     ServerConfig
	Engine     EngineConfig
	Model      ModelConfig
	Generation GenerationConfig
	Upload     UploadConfig
	UI         UIConfig
	Logger     LoggerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type EngineConfig struct {
	// Backend selects the inference engine: "ollama" or "llamacpp".
	Backend string
	// URL of the engine server. Empty picks the backend's default.
	URL     string
	Timeout time.Duration
}

type ModelConfig struct {
	ID string
}

type GenerationConfig struct {
	MaxTokens   int
	Temperature float64
	Verbose     bool
}

type UploadConfig struct {
	// MaxDim downscales uploads whose long side exceeds it. 0 keeps the
	// original size.
	MaxDim int
	// MaxBytes caps upload size. 0 means unlimited.
	MaxBytes int64
}

type UIConfig struct {
	Theme string
}

type LoggerConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 7860)
	v.SetDefault("ENGINE_BACKEND", "ollama")
	v.SetDefault("ENGINE_URL", "")
	v.SetDefault("ENGINE_TIMEOUT", "300s")
	v.SetDefault("MODEL_ID", DefaultModelID)
	v.SetDefault("GENERATION_MAX_TOKENS", 300)
	v.SetDefault("GENERATION_TEMPERATURE", 0.0)
	v.SetDefault("GENERATION_VERBOSE", false)
	v.SetDefault("UPLOAD_MAX_DIM", 0)
	v.SetDefault("UPLOAD_MAX_BYTES", 20<<20)
	v.SetDefault("UI_THEME", "orange")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "text")

	// Env
	v.AutomaticEnv()

	timeout, err := time.ParseDuration(v.GetString("ENGINE_TIMEOUT"))
	if err != nil {
		timeout = 300 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Engine: EngineConfig{
			Backend: v.GetString("ENGINE_BACKEND"),
			URL:     v.GetString("ENGINE_URL"),
			Timeout: timeout,
		},
		Model: ModelConfig{
			ID: v.GetString("MODEL_ID"),
		},
		Generation: GenerationConfig{
			MaxTokens:   v.GetInt("GENERATION_MAX_TOKENS"),
			Temperature: v.GetFloat64("GENERATION_TEMPERATURE"),
			Verbose:     v.GetBool("GENERATION_VERBOSE"),
		},
		Upload: UploadConfig{
			MaxDim:   v.GetInt("UPLOAD_MAX_DIM"),
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		UI: UIConfig{
			Theme: v.GetString("UI_THEME"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Engine.Backend != "ollama" && c.Engine.Backend != "llamacpp" {
		return fmt.Errorf("unknown engine backend %q (use 'ollama' or 'llamacpp')", c.Engine.Backend)
	}
	if c.Model.ID == "" {
		return fmt.Errorf("model id cannot be empty")
	}
	if c.Generation.MaxTokens < 1 {
		return fmt.Errorf("generation max tokens must be positive")
	}
	if c.Generation.Temperature < 0 {
		return fmt.Errorf("generation temperature cannot be negative")
	}
	if c.Upload.MaxDim < 0 {
		return fmt.Errorf("upload max dim cannot be negative")
	}
	return nil
}
