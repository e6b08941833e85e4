package config

import (
	"time"

	"github.com/voxprep/voxprep/internal/notify"
)

// GeneralConfig holds global settings that apply across the daemon.
type GeneralConfig struct {
	LogLevel  string `toml:"log_level"`
	LogPretty bool   `toml:"log_pretty"`
}

type Config struct {
	General       GeneralConfig             `toml:"general"`
	Capture       CaptureConfig             `toml:"capture"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Recognition   RecognitionConfig         `toml:"recognition"`
	Assistant     AssistantConfig           `toml:"assistant"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Metrics       MetricsConfig             `toml:"metrics"`
	Providers     map[string]ProviderConfig `toml:"providers"`
}

// ProviderConfig holds the API key for a provider. Keys may also come from
// the environment; see ResolveAPIKey.
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

// CaptureConfig configures the hardware capture session.
type CaptureConfig struct {
	Device            string        `toml:"device"`             // PipeWire target, empty = default source
	ChunkInterval     time.Duration `toml:"chunk_interval"`     // cadence of chunk emission
	SampleRate        int           `toml:"sample_rate"`
	Channels          int           `toml:"channels"`
	Format            string        `toml:"format"`
	BufferSize        int           `toml:"buffer_size"`
	ChannelBufferSize int           `toml:"channel_buffer_size"`
	Timeout           time.Duration `toml:"timeout"` // hard cap on a single capture session
}

// TranscriptionConfig configures the chunk transcription path.
type TranscriptionConfig struct {
	Provider    string        `toml:"provider"`
	Model       string        `toml:"model"`
	Language    string        `toml:"language"`
	MinInterval time.Duration `toml:"min_interval"` // minimum spacing between accepted chunks
	MinBytes    int           `toml:"min_bytes"`    // chunks below this are treated as silence
}

// RecognitionConfig configures the streaming speech-recognition path.
type RecognitionConfig struct {
	Enabled      bool          `toml:"enabled"`
	Provider     string        `toml:"provider"`
	Model        string        `toml:"model"`
	Language     string        `toml:"language"`
	RestartDelay time.Duration `toml:"restart_delay"` // debounce window for engine restarts
}

// AssistantConfig configures answer generation.
type AssistantConfig struct {
	Provider        string  `toml:"provider"`
	Model           string  `toml:"model"`
	JobType         string  `toml:"job_type"`         // interview context, e.g. "backend engineer"
	ContextSegments int     `toml:"context_segments"` // final segments buffered before dispatch
	MaxTokens       int     `toml:"max_tokens"`
	Temperature     float32 `toml:"temperature"`
}

type NotificationsConfig struct {
	Enabled  bool                     `toml:"enabled"`
	Type     string                   `toml:"type"` // "desktop", "log", "none"
	Messages map[string]MessageConfig `toml:"messages"`
}

type MessageConfig struct {
	Title string `toml:"title"`
	Body  string `toml:"body"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// ResolveMessages merges user overrides with the built-in message set.
func (n *NotificationsConfig) ResolveMessages() map[notify.MessageType]notify.Message {
	result := make(map[notify.MessageType]notify.Message)
	for _, def := range notify.MessageDefs {
		msg := notify.Message{
			Title:    def.DefaultTitle,
			Body:     def.DefaultBody,
			Blocking: def.Blocking,
		}
		if user, ok := n.Messages[def.ConfigKey]; ok {
			if user.Title != "" {
				msg.Title = user.Title
			}
			if user.Body != "" {
				msg.Body = user.Body
			}
		}
		result[def.Type] = msg
	}
	return result
}
