package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter transcribes audio chunks through the Whisper API.
type OpenAIAdapter struct {
	client *openai.Client
	config Config
	log    zerolog.Logger
}

func NewOpenAIAdapter(config Config) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: openai.NewClient(config.APIKey),
		config: config,
		log:    zerolog.Nop(),
	}
}

// WithLogger returns a copy of the adapter using the given logger.
func (a *OpenAIAdapter) WithLogger(log zerolog.Logger) *OpenAIAdapter {
	clone := *a
	clone.log = log
	return &clone
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	if len(audioData) == 0 {
		return "", nil
	}

	wavData := convertToWAV(audioData, a.config.SampleRate, a.config.Channels)

	req := openai.AudioRequest{
		Model:    a.config.Model,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
		Language: a.config.Language,
	}

	start := time.Now()
	resp, err := a.client.CreateTranscription(ctx, req)
	duration := time.Since(start)

	if err != nil {
		a.log.Error().Err(err).Dur("duration", duration).Msg("whisper transcription failed")
		if isAuthError(err) {
			return "", NewFatalTranscriptionError(fmt.Errorf("openai transcription: %w", err))
		}
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	a.log.Debug().
		Int("bytes", len(audioData)).
		Dur("duration", duration).
		Str("text", resp.Text).
		Msg("chunk transcribed")
	return resp.Text, nil
}

func isAuthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden
	}
	return false
}
