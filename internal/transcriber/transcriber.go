package transcriber

import (
	"context"
	"fmt"
)

// Adapter turns one audio chunk into text. Implementations are safe for
// concurrent use.
type Adapter interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

// Config holds the parameters shared by transcription adapters.
type Config struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Channels   int
}

// NewAdapter builds the adapter for the configured provider.
func NewAdapter(provider string, config Config) (Adapter, error) {
	switch provider {
	case "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("openai transcription requires an API key")
		}
		return NewOpenAIAdapter(config), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s", provider)
	}
}
