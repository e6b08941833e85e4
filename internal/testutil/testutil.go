package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voxprep/voxprep/internal/capture"
	"github.com/voxprep/voxprep/internal/config"
	"github.com/voxprep/voxprep/internal/device"
	"github.com/voxprep/voxprep/internal/recognition"
)

// TestConfig returns a valid configuration for testing
func TestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Capture.ChunkInterval = 50 * time.Millisecond
	cfg.Transcription.MinInterval = 20 * time.Millisecond
	cfg.Transcription.MinBytes = 10
	cfg.Recognition.Enabled = false
	cfg.Providers = map[string]config.ProviderConfig{
		"openai":     {APIKey: "test-openai-key"},
		"openrouter": {APIKey: "test-openrouter-key"},
		"deepgram":   {APIKey: "test-deepgram-key"},
	}
	return cfg
}

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// FakeSource implements capture.Source with a controllable frame stream.
type FakeSource struct {
	OpenError error

	mu      sync.Mutex
	frameCh chan capture.Frame
	errCh   chan error
	cancel  context.CancelFunc
	opens   int
	closes  int
	targets []string
}

func (f *FakeSource) Open(ctx context.Context, target string) (<-chan capture.Frame, <-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	f.targets = append(f.targets, target)
	if f.OpenError != nil {
		return nil, nil, f.OpenError
	}

	sourceCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.frameCh = make(chan capture.Frame, 64)
	f.errCh = make(chan error, 1)

	frameCh := f.frameCh
	errCh := f.errCh
	go func() {
		<-sourceCtx.Done()
		f.mu.Lock()
		close(frameCh)
		close(errCh)
		f.frameCh = nil
		f.errCh = nil
		f.mu.Unlock()
	}()

	return frameCh, errCh, nil
}

func (f *FakeSource) Close() {
	f.mu.Lock()
	f.closes++
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Feed pushes one frame into the open stream.
func (f *FakeSource) Feed(data []byte) {
	f.mu.Lock()
	ch := f.frameCh
	f.mu.Unlock()
	if ch != nil {
		ch <- capture.Frame{Data: data, Timestamp: time.Now()}
	}
}

func (f *FakeSource) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *FakeSource) Targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.targets...)
}

// FakeAdapter implements transcriber.Adapter with canned results.
type FakeAdapter struct {
	Result string
	Err    error

	mu    sync.Mutex
	calls int
}

func (f *FakeAdapter) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if f.Result != "" {
		return f.Result, nil
	}
	return "mock transcription", nil
}

func (f *FakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeAnswerClient implements assistant.AnswerClient.
type FakeAnswerClient struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []string
}

func (f *FakeAnswerClient) GenerateAnswer(ctx context.Context, jobType, spokenText string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, spokenText)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if f.Answer != "" {
		return f.Answer, nil
	}
	return "mock answer", nil
}

func (f *FakeAnswerClient) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.prompts...)
}

// FakePlatform implements device.Platform with a fixed device list.
type FakePlatform struct {
	AccessError    error
	Devices        []device.Device
	EnumerateError error
}

func (f *FakePlatform) RequestAudioAccess(ctx context.Context) error { return f.AccessError }

func (f *FakePlatform) EnumerateDevices(ctx context.Context) ([]device.Device, error) {
	return f.Devices, f.EnumerateError
}

// FakeEngine implements recognition.Engine with an external event feed.
type FakeEngine struct {
	StartError error

	mu     sync.Mutex
	events chan recognition.Event
	starts int
	closed bool
}

func (f *FakeEngine) Start(ctx context.Context, frames <-chan capture.Frame) (<-chan recognition.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.StartError != nil {
		return nil, f.StartError
	}
	f.events = make(chan recognition.Event, 16)
	f.closed = false
	return f.events, nil
}

func (f *FakeEngine) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events != nil && !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

// Emit delivers one event to the session under test.
func (f *FakeEngine) Emit(ev recognition.Event) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- ev
}

func (f *FakeEngine) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}
