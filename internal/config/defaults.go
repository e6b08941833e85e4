package config

import "time"

// DefaultConfig returns the initial configuration used for onboarding.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogPretty: false,
		},
		Capture: CaptureConfig{
			Device:            "",
			ChunkInterval:     3 * time.Second,
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16",
			BufferSize:        8192,
			ChannelBufferSize: 30,
			Timeout:           90 * time.Minute,
		},
		Transcription: TranscriptionConfig{
			Provider:    "openai",
			Model:       "whisper-1",
			Language:    "",
			MinInterval: 2 * time.Second,
			MinBytes:    1000,
		},
		Recognition: RecognitionConfig{
			Enabled:      false,
			Provider:     "deepgram",
			Model:        "nova-3",
			Language:     "",
			RestartDelay: 300 * time.Millisecond,
		},
		Assistant: AssistantConfig{
			Provider:        "openrouter",
			Model:           "openai/gpt-4o-mini",
			JobType:         "",
			ContextSegments: 3,
			MaxTokens:       300,
			Temperature:     0.7,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9823",
		},
		Providers: make(map[string]ProviderConfig),
	}
}
