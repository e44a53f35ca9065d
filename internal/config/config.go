package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Candidate names one configuration of the generative text provider. The
// metadata extractor tries candidates in the order they are listed.
type Candidate struct {
	Provider string `yaml:"provider"` // vertex | openai | anthropic | ollama
	Model    string `yaml:"model"`
}

// Config holds all configuration values. Adapters receive what they need at
// construction time; pipeline logic never reads ambient state.
type Config struct {
	// GCP
	ProjectID           string `yaml:"projectId"`
	Region              string `yaml:"region"`
	PagesBucket         string `yaml:"pagesBucket"`
	FirestoreCollection string `yaml:"firestoreCollection"`
	WorkflowID          string `yaml:"workflowId"`
	WorkflowLocation    string `yaml:"workflowLocation"`

	// Render provider
	RenderAPIBase string `yaml:"renderApiBase"`
	RenderAPIKey  string `yaml:"renderApiKey"`
	RenderFormat  string `yaml:"renderFormat"`

	// OCR
	OCRLanguage string `yaml:"ocrLanguage"`

	// Generative text candidates, in fallback order.
	Candidates      []Candidate `yaml:"candidates"`
	OpenAIAPIKey    string      `yaml:"openaiApiKey"`
	AnthropicAPIKey string      `yaml:"anthropicApiKey"`
	OllamaHost      string      `yaml:"ollamaHost"`

	// Pipeline tuning
	TransferConcurrency int           `yaml:"transferConcurrency"`
	RegisterTimeout     time.Duration `yaml:"registerTimeout"`
	OCRTimeout          time.Duration `yaml:"ocrTimeout"`
	GenerateTimeout     time.Duration `yaml:"generateTimeout"`
	TransferTimeout     time.Duration `yaml:"transferTimeout"`

	// Logging
	LogFile  string     `yaml:"logFile"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		ProjectID:           getEnv("PROJECT_ID", ""),
		Region:              getEnv("GCP_REGION", "us-central1"),
		PagesBucket:         getEnv("PAGES_BUCKET", ""),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "books"),
		WorkflowID:          getEnv("WORKFLOW_ID", ""),
		WorkflowLocation:    getEnv("WORKFLOW_LOCATION", "us-central1"),

		RenderAPIBase: getEnv("RENDER_API_BASE", ""),
		RenderAPIKey:  getEnv("RENDER_API_KEY", ""),
		RenderFormat:  getEnv("RENDER_FORMAT", "png"),

		OCRLanguage: getEnv("OCR_LANGUAGE", "eng"),

		Candidates:      parseCandidates(getEnv("MODEL_CANDIDATES", "vertex:gemini-1.5-pro,vertex:gemini-1.5-flash")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		TransferConcurrency: getEnvInt("TRANSFER_CONCURRENCY", 8),
		RegisterTimeout:     getEnvDuration("REGISTER_TIMEOUT", 2*time.Minute),
		OCRTimeout:          getEnvDuration("OCR_TIMEOUT", 90*time.Second),
		GenerateTimeout:     getEnvDuration("GENERATE_TIMEOUT", 60*time.Second),
		TransferTimeout:     getEnvDuration("TRANSFER_TIMEOUT", 50*time.Second),

		LogFile:  getEnv("BOOKFLOW_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("BOOKFLOW_LOG_LEVEL", "INFO")),
	}
}

// LoadFile overlays values from a YAML file onto the environment-derived
// configuration. Zero values in the file leave the base value untouched for
// the fields that matter most to callers.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields every flow needs. Flow-specific requirements
// (bucket for full ingestion) are checked by the callers that need them.
func (c Config) Validate() error {
	if c.RenderAPIBase == "" {
		return fmt.Errorf("RENDER_API_BASE must be set")
	}
	if len(c.Candidates) == 0 {
		return fmt.Errorf("at least one model candidate must be configured")
	}
	return nil
}

// parseCandidates parses "provider:model,provider:model" into an ordered list.
func parseCandidates(s string) []Candidate {
	var out []Candidate
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		provider, model, ok := strings.Cut(part, ":")
		if !ok {
			provider, model = "vertex", part
		}
		out = append(out, Candidate{Provider: provider, Model: model})
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
