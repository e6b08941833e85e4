package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/capture"
	"github.com/voxprep/voxprep/internal/notify"
)

type fakeAdapter struct {
	mu      sync.Mutex
	calls   int
	results []string
	err     error
	delay   time.Duration
}

func (f *fakeAdapter) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if call < len(f.results) {
		return f.results[call], nil
	}
	return "transcribed text", nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testChunk(size int) capture.Chunk {
	return capture.Chunk{
		SessionID:    "session-1",
		Data:         make([]byte, size),
		CapturedFrom: time.Now().Add(-time.Second),
		CapturedTo:   time.Now(),
	}
}

func testGateConfig() Config {
	return Config{MinInterval: 100 * time.Millisecond, MinBytes: 1000}
}

func TestGateDropsSmallChunks(t *testing.T) {
	adapter := &fakeAdapter{}
	g := New(testGateConfig(), adapter, notify.Nop{}, zerolog.Nop())

	if g.Submit(context.Background(), testChunk(999)) {
		t.Error("chunk below MinBytes must be dropped")
	}
	g.Wait()
	if adapter.callCount() != 0 {
		t.Errorf("expected no transcription calls, got %d", adapter.callCount())
	}
}

func TestGateRateLimit(t *testing.T) {
	adapter := &fakeAdapter{}
	g := New(testGateConfig(), adapter, notify.Nop{}, zerolog.Nop())
	ctx := context.Background()

	if !g.Submit(ctx, testChunk(2000)) {
		t.Fatal("first chunk must be accepted")
	}
	if g.Submit(ctx, testChunk(2000)) {
		t.Error("chunk inside the rate window must be dropped")
	}

	time.Sleep(120 * time.Millisecond)
	if !g.Submit(ctx, testChunk(2000)) {
		t.Error("chunk after the rate window must be accepted")
	}

	g.Wait()
	if adapter.callCount() != 2 {
		t.Errorf("expected 2 transcription calls, got %d", adapter.callCount())
	}
}

func TestGateRateWindowFromAcceptance(t *testing.T) {
	adapter := &fakeAdapter{}
	g := New(testGateConfig(), adapter, notify.Nop{}, zerolog.Nop())
	ctx := context.Background()

	g.Submit(ctx, testChunk(2000))

	// Dropped submissions must not extend the window.
	time.Sleep(60 * time.Millisecond)
	g.Submit(ctx, testChunk(2000)) // dropped: inside window
	time.Sleep(60 * time.Millisecond)

	if !g.Submit(ctx, testChunk(2000)) {
		t.Error("window must be measured from the last acceptance, not the last attempt")
	}
	g.Wait()
}

func TestGateEmitsSegments(t *testing.T) {
	adapter := &fakeAdapter{results: []string{"  hello world  "}}
	g := New(testGateConfig(), adapter, notify.Nop{}, zerolog.Nop())

	if !g.Submit(context.Background(), testChunk(2000)) {
		t.Fatal("chunk must be accepted")
	}

	select {
	case seg := <-g.Out():
		if seg.Text != "hello world" {
			t.Errorf("expected trimmed text, got %q", seg.Text)
		}
		if seg.SubmissionID == "" {
			t.Error("segment missing submission id")
		}
		if seg.SessionID != "session-1" {
			t.Errorf("unexpected session id %q", seg.SessionID)
		}
		if seg.CompletedAt.IsZero() {
			t.Error("segment missing completion timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("no segment emitted")
	}
}

func TestGateDropsEmptyResults(t *testing.T) {
	adapter := &fakeAdapter{results: []string{"   "}}
	g := New(testGateConfig(), adapter, notify.Nop{}, zerolog.Nop())

	g.Submit(context.Background(), testChunk(2000))
	g.Wait()

	select {
	case seg := <-g.Out():
		t.Errorf("empty result must not produce a segment, got %q", seg.Text)
	default:
	}
}

func TestGateNotifiesOnFailure(t *testing.T) {
	adapter := &fakeAdapter{err: errors.New("api unavailable")}
	recorder := &notify.Recorder{}
	g := New(testGateConfig(), adapter, recorder, zerolog.Nop())

	g.Submit(context.Background(), testChunk(2000))
	g.Wait()

	types := recorder.Types()
	if len(types) != 1 || types[0] != notify.TranscriptionFailed {
		t.Errorf("expected a TranscriptionFailed notification, got %v", types)
	}

	select {
	case <-g.Out():
		t.Error("failed transcription must not produce a segment")
	default:
	}
}

func TestGateCompletionOrdering(t *testing.T) {
	// Two accepted submissions where the first takes longer than the
	// second: segments arrive in completion order, each stamped at
	// completion time.
	cfg := Config{MinInterval: time.Millisecond, MinBytes: 10}
	slowThenFast := &orderedAdapter{
		delays:  []time.Duration{150 * time.Millisecond, 10 * time.Millisecond},
		results: []string{"slow", "fast"},
	}

	g := New(cfg, slowThenFast, notify.Nop{}, zerolog.Nop())
	ctx := context.Background()

	g.Submit(ctx, testChunk(100))
	time.Sleep(5 * time.Millisecond)
	g.Submit(ctx, testChunk(100))

	first := <-g.Out()
	second := <-g.Out()

	if first.Text != "fast" || second.Text != "slow" {
		t.Errorf("expected completion order fast,slow; got %q,%q", first.Text, second.Text)
	}
	if second.CompletedAt.Before(first.CompletedAt) {
		t.Error("completion timestamps out of order")
	}
}

type orderedAdapter struct {
	mu      sync.Mutex
	calls   int
	delays  []time.Duration
	results []string
}

func (o *orderedAdapter) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	o.mu.Lock()
	call := o.calls
	o.calls++
	o.mu.Unlock()

	time.Sleep(o.delays[call%len(o.delays)])
	return o.results[call%len(o.results)], nil
}
