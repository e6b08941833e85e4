package recognition

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

type fakeEngine struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	events   chan Event
	closed   bool
}

func (f *fakeEngine) Start(ctx context.Context, frames <-chan capture.Frame) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.events = make(chan Event, 8)
	f.closed = false
	return f.events, nil
}

func (f *fakeEngine) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.events != nil && !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeEngine) emit(ev Event) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- ev
}

// endStream closes the event channel as a natural stream end.
func (f *fakeEngine) endStream() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events != nil && !f.closed {
		close(f.events)
		f.closed = true
	}
}

func (f *fakeEngine) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func testRecognitionConfig() SessionConfig {
	return SessionConfig{RestartDelay: 20 * time.Millisecond}
}

func waitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestSessionUnsupportedWithoutEngine(t *testing.T) {
	s := NewSession(nil, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	err := s.Start(context.Background(), nil)
	if !errors.Is(err, ErrRecognitionUnsupported) {
		t.Errorf("expected ErrRecognitionUnsupported, got %v", err)
	}
}

func TestSessionFinalsAndDisplay(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	engine.emit(Result{Interim: "tell me ab"})
	waitFor(t, func() bool { return s.Display() == "tell me ab" }, time.Second)

	engine.emit(Result{Final: "tell me about yourself"})
	select {
	case final := <-s.Finals():
		if final != "tell me about yourself" {
			t.Errorf("unexpected final: %q", final)
		}
	case <-time.After(time.Second):
		t.Fatal("no final delivered")
	}

	// The final replaces the interim hypothesis in the display string.
	waitFor(t, func() bool { return s.Display() == "tell me about yourself" }, time.Second)

	engine.emit(Result{Interim: "I have"})
	waitFor(t, func() bool { return s.Display() == "tell me about yourself I have" }, time.Second)
}

func TestSessionRestartsOnTransientError(t *testing.T) {
	engine := &fakeEngine{}
	recorder := &notify.Recorder{}
	s := NewSession(engine, testRecognitionConfig(), recorder, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	engine.emit(ErrorEvent{Kind: KindTransient, Err: errors.New("network blip")})

	waitFor(t, func() bool { return engine.startCount() == 2 }, time.Second)
	waitFor(t, func() bool { return s.State() == StateListening }, time.Second)

	// Exactly one restart.
	time.Sleep(3 * testRecognitionConfig().RestartDelay)
	if engine.startCount() != 2 {
		t.Errorf("expected exactly one restart, got %d starts", engine.startCount())
	}

	types := recorder.Types()
	found := false
	for _, typ := range types {
		if typ == notify.RecognitionRestarting {
			found = true
		}
	}
	if !found {
		t.Errorf("expected RecognitionRestarting notification, got %v", types)
	}
}

func TestSessionRestartsOnNaturalEnd(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	engine.endStream()
	waitFor(t, func() bool { return engine.startCount() == 2 }, time.Second)
	waitFor(t, func() bool { return s.State() == StateListening }, time.Second)
}

func TestSessionStopRightAfterRestart(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	engine.endStream()
	waitFor(t, func() bool { return engine.startCount() == 2 }, time.Second)

	// Stop racing the freshly restarted consumer must wait for it and
	// leave nothing running behind the teardown.
	s.Stop()

	if s.State() != StateStopped {
		t.Errorf("expected stopped, got %v", s.State())
	}
	time.Sleep(3 * testRecognitionConfig().RestartDelay)
	if engine.startCount() != 2 {
		t.Errorf("engine restarted after stop: %d starts", engine.startCount())
	}
}

func TestSessionRestartsOnEndedEvent(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	engine.emit(Ended{})
	waitFor(t, func() bool { return engine.startCount() == 2 }, time.Second)
	waitFor(t, func() bool { return s.State() == StateListening }, time.Second)
}

func TestSessionSecondFailureBeforeRestartDoesNotDuplicate(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	// Two failure signals arrive back to back; the stream close behind
	// the error must fold into the already-pending restart.
	engine.emit(ErrorEvent{Kind: KindTransient, Err: errors.New("connection reset")})
	engine.endStream()

	waitFor(t, func() bool { return engine.startCount() == 2 }, time.Second)
	waitFor(t, func() bool { return s.State() == StateListening }, time.Second)

	time.Sleep(3 * testRecognitionConfig().RestartDelay)
	if engine.startCount() != 2 {
		t.Errorf("expected one restart for back-to-back failures, got %d starts", engine.startCount())
	}
}

func TestSessionPermissionErrorIsTerminal(t *testing.T) {
	engine := &fakeEngine{}
	recorder := &notify.Recorder{}
	s := NewSession(engine, testRecognitionConfig(), recorder, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	engine.emit(ErrorEvent{Kind: KindPermission, Err: errors.New("access revoked")})

	waitFor(t, func() bool { return s.State() == StateStopped }, time.Second)

	// No restart may follow a permission failure.
	time.Sleep(3 * testRecognitionConfig().RestartDelay)
	if engine.startCount() != 1 {
		t.Errorf("expected no restart after permission failure, got %d starts", engine.startCount())
	}

	types := recorder.Types()
	if len(types) == 0 || types[len(types)-1] != notify.MicrophoneAccessDenied {
		t.Errorf("expected MicrophoneAccessDenied notification, got %v", types)
	}
}

func TestSessionStopCancelsPendingRestart(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	engine.emit(ErrorEvent{Kind: KindTransient, Err: errors.New("network blip")})
	waitFor(t, func() bool { return s.State() == StateRestarting }, time.Second)

	s.Stop()

	time.Sleep(3 * testRecognitionConfig().RestartDelay)
	if engine.startCount() != 1 {
		t.Errorf("restart fired after stop: %d starts", engine.startCount())
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped, got %v", s.State())
	}
}

func TestSessionStopIdempotentAndClearsBuffers(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, testRecognitionConfig(), notify.Nop{}, zerolog.Nop())

	s.Stop() // no-op before start

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	engine.emit(Result{Final: "hello"})
	waitFor(t, func() bool { return s.Display() == "hello" }, time.Second)

	s.Stop()
	s.Stop()

	if s.Display() != "" {
		t.Errorf("expected cleared display after stop, got %q", s.Display())
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped, got %v", s.State())
	}
}

func TestSessionStartErrorAccessDenied(t *testing.T) {
	engine := &fakeEngine{startErr: ErrAccessDenied}
	recorder := &notify.Recorder{}
	s := NewSession(engine, testRecognitionConfig(), recorder, zerolog.Nop())

	err := s.Start(context.Background(), nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped after denied start, got %v", s.State())
	}

	types := recorder.Types()
	if len(types) != 1 || types[0] != notify.MicrophoneAccessDenied {
		t.Errorf("expected MicrophoneAccessDenied, got %v", types)
	}
}
