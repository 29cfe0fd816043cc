// Package config loads and validates ummon's YAML configuration file, with
// environment-variable overrides applied after load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ummon configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	LLM     LLMConfig     `yaml:"llm"`
	Query   QueryConfig   `yaml:"query"`
	Server  ServerConfig  `yaml:"server"`
}

// StoreConfig configures the persistent SQLite-backed store (C2).
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// LLMProvider is the closed set of LLM backends the external client (§6)
// knows how to address. Mock is a first-class provider so the relevance
// pipeline's keyword extraction degrades gracefully without network access.
type LLMProvider string

const (
	LLMProviderOpenRouter  LLMProvider = "openrouter"
	LLMProviderOpenAI      LLMProvider = "openai"
	LLMProviderAnthropic   LLMProvider = "anthropic"
	LLMProviderGoogleVertex LLMProvider = "google_vertex_ai"
	LLMProviderOllama      LLMProvider = "ollama"
	LLMProviderMock        LLMProvider = "mock"
)

// LLMConfig configures the external LLM client used for keyword extraction.
type LLMConfig struct {
	Provider    LLMProvider `yaml:"provider"`
	Model       string      `yaml:"model"`
	Endpoint    string      `yaml:"endpoint"`
	APIKeyEnv   string      `yaml:"api_key_env"`
	Temperature float64     `yaml:"temperature"`
	MaxTokens   int         `yaml:"max_tokens"`
	Timeout     string      `yaml:"timeout"`
}

// QueryConfig configures query-engine defaults.
type QueryConfig struct {
	DefaultFormat string `yaml:"default_format"`
	DefaultLimit  int    `yaml:"default_limit"`
}

// ServerConfig configures the JSON-RPC tool server (§6).
type ServerConfig struct {
	Protocol string `yaml:"protocol"` // stdio | http | sse
	Address  string `yaml:"address"`
}

// DefaultConfig returns ummon's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Path: "./ummon.db"},
		Logging: LoggingConfig{
			DebugMode:  false,
			Level:      "info",
			JSONFormat: false,
		},
		LLM: LLMConfig{
			Provider:    LLMProviderMock,
			Model:       "mock-extractor",
			Temperature: 0.0,
			MaxTokens:   512,
			Timeout:     "30s",
		},
		Query: QueryConfig{
			DefaultFormat: "text",
			DefaultLimit:  50,
		},
		Server: ServerConfig{
			Protocol: "stdio",
			Address:  "127.0.0.1:8077",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if the
// file does not exist, then applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration back to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides on top of file
// and default values. UMMON_DB overrides the store path; UMMON_LLM_PROVIDER
// selects the provider; UMMON_LLM_MODEL sets the model; UMMON_DEBUG enables
// debug mode. No API key is read here, and LLM.APIKeyEnv is not consulted.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("UMMON_DB"); path != "" {
		c.Store.Path = path
	}
	if provider := os.Getenv("UMMON_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = LLMProvider(provider)
	}
	if model := os.Getenv("UMMON_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if debug := os.Getenv("UMMON_DEBUG"); debug == "1" || debug == "true" {
		c.Logging.DebugMode = true
	}
}

// Validate checks invariants Load cannot enforce via YAML alone.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	switch c.Server.Protocol {
	case "stdio", "http", "sse":
	default:
		return fmt.Errorf("server.protocol must be one of stdio, http, sse, got %q", c.Server.Protocol)
	}
	switch c.LLM.Provider {
	case LLMProviderOpenRouter, LLMProviderOpenAI, LLMProviderAnthropic,
		LLMProviderGoogleVertex, LLMProviderOllama, LLMProviderMock:
	default:
		return fmt.Errorf("llm.provider %q is not a known provider", c.LLM.Provider)
	}
	return nil
}

// GetLLMTimeout returns the LLM client timeout as a duration, defaulting to
// 30s if unset or unparseable.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
