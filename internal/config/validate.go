package config

import "fmt"

func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture.sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels <= 0 {
		return fmt.Errorf("invalid capture.channels: %d", c.Capture.Channels)
	}
	if c.Capture.Format == "" {
		return fmt.Errorf("invalid capture.format: empty")
	}
	if c.Capture.BufferSize <= 0 {
		return fmt.Errorf("invalid capture.buffer_size: %d", c.Capture.BufferSize)
	}
	if c.Capture.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid capture.channel_buffer_size: %d", c.Capture.ChannelBufferSize)
	}
	if c.Capture.ChunkInterval <= 0 {
		return fmt.Errorf("invalid capture.chunk_interval: %v", c.Capture.ChunkInterval)
	}
	if c.Capture.Timeout <= 0 {
		return fmt.Errorf("invalid capture.timeout: %v", c.Capture.Timeout)
	}

	if c.Transcription.MinInterval <= 0 {
		return fmt.Errorf("invalid transcription.min_interval: %v", c.Transcription.MinInterval)
	}
	if c.Transcription.MinBytes <= 0 {
		return fmt.Errorf("invalid transcription.min_bytes: %d", c.Transcription.MinBytes)
	}

	switch c.Transcription.Provider {
	case "openai":
		if c.ResolveAPIKey("openai") == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (providers.openai.api_key) or environment (OPENAI_API_KEY)")
		}
		if c.Transcription.Language != "" && !isValidLanguageCode(c.Transcription.Language) {
			return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
		}
	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be openai)", c.Transcription.Provider)
	}
	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}

	if c.Recognition.Enabled {
		if c.Recognition.Provider != "deepgram" {
			return fmt.Errorf("unsupported recognition.provider: %s (must be deepgram)", c.Recognition.Provider)
		}
		if c.ResolveAPIKey("deepgram") == "" {
			return fmt.Errorf("Deepgram API key required: not found in config (providers.deepgram.api_key) or environment (DEEPGRAM_API_KEY)")
		}
		if c.Recognition.RestartDelay <= 0 {
			return fmt.Errorf("invalid recognition.restart_delay: %v", c.Recognition.RestartDelay)
		}
	}

	switch c.Assistant.Provider {
	case "openrouter", "openai":
	default:
		return fmt.Errorf("unsupported assistant.provider: %s (must be openrouter or openai)", c.Assistant.Provider)
	}
	if c.Assistant.Model == "" {
		return fmt.Errorf("invalid assistant.model: empty")
	}
	if c.Assistant.ContextSegments <= 0 {
		return fmt.Errorf("invalid assistant.context_segments: %d", c.Assistant.ContextSegments)
	}
	// The assistant key is a runtime precondition rather than a config
	// error: the capture pipeline is usable without answer generation.

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true, "": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("invalid metrics.addr: empty while metrics.enabled = true")
	}

	return nil
}

func isValidLanguageCode(code string) bool {
	validCodes := map[string]bool{
		"en": true, "es": true, "fr": true, "de": true, "it": true, "pt": true,
		"ru": true, "ja": true, "ko": true, "zh": true, "ar": true, "hi": true,
		"nl": true, "sv": true, "da": true, "no": true, "fi": true, "pl": true,
		"tr": true, "he": true, "th": true, "vi": true, "id": true, "ms": true,
		"uk": true, "cs": true, "hu": true, "ro": true, "bg": true, "hr": true,
	}
	return validCodes[code]
}
