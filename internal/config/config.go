// Package config holds all dealgraph configuration: YAML file with sane
// defaults, overridden by environment variables where secrets live.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dealgraph configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// LLM completion provider
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector store
	Store StoreConfig `yaml:"store"`

	// Document ingestion
	Ingest IngestConfig `yaml:"ingest"`

	// Prompt template overrides
	Prompts PromptsConfig `yaml:"prompts"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	// Largest accepted upload, in bytes.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // genai, ollama
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
}

// StoreConfig configures the sqlite-vec chunk store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	// Passages returned per retrieval query.
	TopK int `yaml:"top_k"`
}

// IngestConfig configures PDF splitting.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	// Concurrent embedding calls during ingestion.
	EmbedWorkers int `yaml:"embed_workers"`
}

// PromptsConfig configures prompt template overrides.
type PromptsConfig struct {
	// Directory holding per-stage template overrides; empty disables overrides.
	OverrideDir string `yaml:"override_dir"`
	// Hot-reload overrides on file change.
	Watch bool `yaml:"watch"`
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "dealgraph",
		Version: "0.3.0",
		Server: ServerConfig{
			Addr:           ":3001",
			ReadTimeout:    "30s",
			WriteTimeout:   "5m",
			MaxUploadBytes: 32 << 20,
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-1.5-flash",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
			Timeout:  "2m",
		},
		Embedding: EmbeddingConfig{
			Provider:       "genai",
			GenAIModel:     "gemini-embedding-001",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
		},
		Store: StoreConfig{
			DatabasePath: "dealgraph.db",
			TopK:         5,
		},
		Ingest: IngestConfig{
			ChunkSize:    500,
			ChunkOverlap: 200,
			EmbedWorkers: 4,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Dir:     "logs",
			Level:   "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults for
// anything unset. A missing file is not an error: defaults plus environment
// overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
// Secrets should come from the environment, not the YAML file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = key
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = key
	}
	if addr := os.Getenv("DEALGRAPH_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("DEALGRAPH_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("DEALGRAPH_PROMPTS"); dir != "" {
		c.Prompts.OverrideDir = dir
	}
}

// Validate checks for configuration mistakes that would only surface later.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %s (use 'gemini' or 'openai')", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "genai", "ollama":
	default:
		return fmt.Errorf("unsupported embedding provider: %s (use 'genai' or 'ollama')", c.Embedding.Provider)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Store.TopK <= 0 {
		return fmt.Errorf("store top_k must be positive, got %d", c.Store.TopK)
	}
	return nil
}

// GetLLMTimeout parses the LLM timeout with a safe fallback.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// GetReadTimeout parses the server read timeout with a safe fallback.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout parses the server write timeout with a safe fallback.
// Generous by default: an upload triggers a full pipeline run inline.
func (c *Config) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.WriteTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
