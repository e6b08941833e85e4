package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	dir := filepath.Join(configDir, "voxprep")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "config.toml"), nil
}

// envCredentials are credential overrides read from the environment.
// Anything set here wins over the TOML providers table.
type envCredentials struct {
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY"`
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: run voxprep configure", ErrConfigNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}

	config.applyDefaults()
	config.applyEnvCredentials()

	return &config, nil
}

// Save writes the configuration to the config path. The write goes to a
// temp file first and is renamed into place, so the fsnotify watcher and
// a concurrently starting daemon never see a half-written file.
func Save(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(configPath), "config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpPath := f.Name()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// applyDefaults fills zero values that have sensible defaults so a sparse
// config file still yields a working daemon.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.General.LogLevel == "" {
		c.General.LogLevel = def.General.LogLevel
	}
	if c.Capture.ChunkInterval == 0 {
		c.Capture.ChunkInterval = def.Capture.ChunkInterval
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = def.Capture.SampleRate
	}
	if c.Capture.Channels == 0 {
		c.Capture.Channels = def.Capture.Channels
	}
	if c.Capture.Format == "" {
		c.Capture.Format = def.Capture.Format
	}
	if c.Capture.BufferSize == 0 {
		c.Capture.BufferSize = def.Capture.BufferSize
	}
	if c.Capture.ChannelBufferSize == 0 {
		c.Capture.ChannelBufferSize = def.Capture.ChannelBufferSize
	}
	if c.Capture.Timeout == 0 {
		c.Capture.Timeout = def.Capture.Timeout
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = def.Transcription.Provider
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = def.Transcription.Model
	}
	if c.Transcription.MinInterval == 0 {
		c.Transcription.MinInterval = def.Transcription.MinInterval
	}
	if c.Transcription.MinBytes == 0 {
		c.Transcription.MinBytes = def.Transcription.MinBytes
	}
	if c.Recognition.Provider == "" {
		c.Recognition.Provider = def.Recognition.Provider
	}
	if c.Recognition.Model == "" {
		c.Recognition.Model = def.Recognition.Model
	}
	if c.Recognition.RestartDelay == 0 {
		c.Recognition.RestartDelay = def.Recognition.RestartDelay
	}
	if c.Assistant.Provider == "" {
		c.Assistant.Provider = def.Assistant.Provider
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = def.Assistant.Model
	}
	if c.Assistant.ContextSegments == 0 {
		c.Assistant.ContextSegments = def.Assistant.ContextSegments
	}
	if c.Assistant.MaxTokens == 0 {
		c.Assistant.MaxTokens = def.Assistant.MaxTokens
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = def.Metrics.Addr
	}
}

// applyEnvCredentials overlays API keys from the environment. A .env file
// in the working directory is honored for development setups.
func (c *Config) applyEnvCredentials() {
	_ = godotenv.Load()

	var creds envCredentials
	if err := envconfig.Process("voxprep", &creds); err != nil {
		return
	}

	set := func(provider, key string) {
		if key == "" {
			return
		}
		c.Providers[provider] = ProviderConfig{APIKey: key}
	}
	set("openai", creds.OpenAIAPIKey)
	set("openrouter", creds.OpenRouterAPIKey)
	set("deepgram", creds.DeepgramAPIKey)
}

// ResolveAPIKey returns the API key for a provider, or empty if unset.
func (c *Config) ResolveAPIKey(provider string) string {
	if p, ok := c.Providers[provider]; ok {
		return p.APIKey
	}
	return ""
}
