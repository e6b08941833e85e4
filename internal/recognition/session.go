package recognition

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/capture"
	"github.com/voxprep/voxprep/internal/metrics"
	"github.com/voxprep/voxprep/internal/notify"
)

// State is the recognition session lifecycle state.
type State string

const (
	StateStopped    State = "stopped"
	StateListening  State = "listening"
	StateRestarting State = "restarting"
)

type SessionConfig struct {
	// RestartDelay debounces engine restarts: a new restart request
	// within the window replaces the pending one, so at most one
	// restart is in flight.
	RestartDelay time.Duration
}

// Session supervises a streaming recognition engine. Transient failures
// and natural stream ends trigger a single debounced restart; access
// failures stop the session permanently.
type Session struct {
	engine   Engine
	config   SessionConfig
	notifier notify.Notifier
	log      zerolog.Logger

	requestRestart func(func())

	mu      sync.Mutex
	state   State
	finals  []string
	interim string
	frames  <-chan capture.Frame
	ctx     context.Context
	cancel  context.CancelFunc

	out chan string
	wg  sync.WaitGroup
}

func NewSession(engine Engine, config SessionConfig, notifier notify.Notifier, log zerolog.Logger) *Session {
	return &Session{
		engine:         engine,
		config:         config,
		notifier:       notifier,
		log:            log,
		requestRestart: debounce.New(config.RestartDelay),
		state:          StateStopped,
		out:            make(chan string, 16),
	}
}

// Finals delivers finished utterances in arrival order.
func (s *Session) Finals() <-chan string { return s.out }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Display returns the text to show: confirmed finals followed by the
// current interim hypothesis.
func (s *Session) Display() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := append([]string{}, s.finals...)
	if s.interim != "" {
		parts = append(parts, s.interim)
	}
	return strings.Join(parts, " ")
}

// Start begins listening on the given audio frames. Only valid from the
// stopped state.
func (s *Session) Start(ctx context.Context, frames <-chan capture.Frame) error {
	if s.engine == nil {
		return ErrRecognitionUnsupported
	}

	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return errors.New("recognition session already running")
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	s.ctx = sessionCtx
	s.cancel = cancel
	s.frames = frames
	s.mu.Unlock()

	events, err := s.engine.Start(sessionCtx, frames)
	if err != nil {
		cancel()
		if errors.Is(err, ErrAccessDenied) {
			s.notifier.Notify(notify.MicrophoneAccessDenied)
		}
		return err
	}

	s.mu.Lock()
	s.state = StateListening
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info().Msg("recognition session listening")

	go s.consume(events)
	return nil
}

// Stop halts the session. Idempotent; a pending restart is cancelled and
// the interim buffer cleared.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.interim = ""
	s.finals = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	_ = s.engine.Stop(stopCtx)

	s.wg.Wait()
	s.log.Info().Msg("recognition session stopped")
}

func (s *Session) consume(events <-chan Event) {
	defer s.wg.Done()

	for ev := range events {
		switch ev := ev.(type) {
		case Result:
			s.handleResult(ev)

		case ErrorEvent:
			if ev.Kind == KindPermission {
				s.log.Error().Err(ev.Err).Msg("recognition access denied")
				s.notifier.Notify(notify.MicrophoneAccessDenied)
				s.terminate()
				return
			}
			s.log.Warn().Err(ev.Err).Msg("recognition engine error, scheduling restart")
			s.scheduleRestart()
			return

		case Ended:
			s.log.Debug().Msg("recognition stream ended, scheduling restart")
			s.scheduleRestart()
			return
		}
	}

	// Engine closed the stream without a terminal event; treat it as a
	// natural end.
	s.scheduleRestart()
}

func (s *Session) handleResult(r Result) {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return
	}
	if r.Final != "" {
		s.finals = append(s.finals, r.Final)
		s.interim = ""
	} else {
		s.interim = r.Interim
	}
	s.mu.Unlock()

	if r.Final != "" {
		select {
		case s.out <- r.Final:
		default:
			s.log.Warn().Msg("finals consumer lagging, dropping utterance")
		}
	}
}

// terminate moves to stopped without touching accumulated finals; used
// for permanent failures discovered mid-stream.
func (s *Session) terminate() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.interim = ""
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) scheduleRestart() {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return
	}
	s.state = StateRestarting
	s.mu.Unlock()

	s.notifier.Notify(notify.RecognitionRestarting)
	s.requestRestart(s.restart)
}

func (s *Session) restart() {
	s.mu.Lock()
	if s.state != StateRestarting {
		// Stop won the race; the restart is abandoned.
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	frames := s.frames
	s.mu.Unlock()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = s.engine.Stop(stopCtx)
	stopCancel()

	events, err := s.engine.Start(ctx, frames)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			s.notifier.Notify(notify.MicrophoneAccessDenied)
		} else {
			s.log.Error().Err(err).Msg("recognition restart failed")
			s.notifier.Error("speech recognition restart failed")
		}
		s.terminate()
		return
	}

	s.mu.Lock()
	if s.state != StateRestarting {
		s.mu.Unlock()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.engine.Stop(stopCtx)
		stopCancel()
		return
	}
	s.state = StateListening
	// The Add must happen under the lock: Stop observes the Listening
	// state through the same mutex before it calls Wait, so the new
	// consumer is always counted.
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.RecognitionRestarted()
	s.log.Info().Msg("recognition session restarted")

	go s.consume(events)
}
