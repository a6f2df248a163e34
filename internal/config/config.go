// Package config loads loupe's runtime configuration: an optional TOML file
// layered over defaults, with API keys taken exclusively from the
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full runtime configuration.
type Config struct {
	LLM   LLMConfig   `toml:"llm"`
	Agent AgentConfig `toml:"agent"`
	HTTP  HTTPConfig  `toml:"http"`
	Log   LogConfig   `toml:"log"`
}

// LLMConfig selects the model provider and generation parameters.
type LLMConfig struct {
	Provider    string  `toml:"provider"` // "openai" or "anthropic"
	Model       string  `toml:"model"`    // provider default when empty
	Temperature float64 `toml:"temperature"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxSteps  int  `toml:"max_steps"`
	Streaming bool `toml:"streaming"`
}

// HTTPConfig controls outbound tool requests (search, retrieval).
type HTTPConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM:   LLMConfig{Provider: "openai", Temperature: 0.7},
		Agent: AgentConfig{MaxSteps: 8, Streaming: true},
		HTTP:  HTTPConfig{TimeoutSeconds: 15},
		Log:   LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads the TOML file at path over the defaults. An empty path or a
// missing file yields the defaults unchanged; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the process could not run with.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q (want openai or anthropic)", c.LLM.Provider)
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent max_steps must be at least 1, got %d", c.Agent.MaxSteps)
	}
	if c.HTTP.TimeoutSeconds < 1 {
		return fmt.Errorf("http timeout_seconds must be at least 1, got %d", c.HTTP.TimeoutSeconds)
	}
	return nil
}

// APIKeyEnv returns the environment variable holding the credential for the
// configured provider.
func (c Config) APIKeyEnv() string {
	if c.LLM.Provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// APIKey reads the provider credential from the environment. Absence is a
// startup-fatal condition surfaced by the caller.
func (c Config) APIKey() (string, error) {
	env := c.APIKeyEnv()
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("%s is not set", env)
	}
	return key, nil
}
