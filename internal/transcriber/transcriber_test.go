package transcriber

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		config   Config
		wantErr  bool
	}{
		{
			name:     "openai with key",
			provider: "openai",
			config:   Config{APIKey: "sk-test", Model: "whisper-1", SampleRate: 16000, Channels: 1},
			wantErr:  false,
		},
		{
			name:     "openai without key",
			provider: "openai",
			config:   Config{Model: "whisper-1"},
			wantErr:  true,
		},
		{
			name:     "unknown provider",
			provider: "acme",
			config:   Config{APIKey: "x"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewAdapter(tt.provider, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adapter == nil {
				t.Error("expected adapter, got nil")
			}
		})
	}
}

func TestConvertToWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := convertToWAV(pcm, 16000, 1)

	if string(wav[0:4]) != "RIFF" {
		t.Errorf("missing RIFF marker: %q", wav[0:4])
	}
	if string(wav[8:12]) != "WAVE" {
		t.Errorf("missing WAVE marker: %q", wav[8:12])
	}

	rate := binary.LittleEndian.Uint32(wav[24:28])
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}

	dataSize := binary.LittleEndian.Uint32(wav[40:44])
	if int(dataSize) != len(pcm) {
		t.Errorf("expected data size %d, got %d", len(pcm), dataSize)
	}
	if string(wav[44:]) != string(pcm) {
		t.Error("payload does not match input PCM")
	}
}

func TestFatalTranscriptionError(t *testing.T) {
	base := errors.New("invalid api key")
	fatal := NewFatalTranscriptionError(base)

	if !IsFatalTranscriptionError(fatal) {
		t.Error("expected fatal classification")
	}
	if !errors.Is(fatal, base) {
		t.Error("expected wrapped cause to survive")
	}
	if IsFatalTranscriptionError(base) {
		t.Error("plain error must not classify as fatal")
	}
	if NewFatalTranscriptionError(nil) != nil {
		t.Error("nil in must be nil out")
	}
}
