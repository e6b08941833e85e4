package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/metrics"
)

// State is the capture session lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// ErrNoMicrophoneSelected is returned by Start when the target is empty.
var ErrNoMicrophoneSelected = errors.New("no microphone selected")

// ErrAlreadyActive is returned by Start when a session is already running.
var ErrAlreadyActive = errors.New("capture session already active")

// AcquisitionError wraps a failure to open the audio source. The session
// transitions to the error state and then settles back to idle.
type AcquisitionError struct {
	Cause error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire audio source: %v", e.Cause)
}

func (e *AcquisitionError) Unwrap() error { return e.Cause }

// Chunk is a delta emission: only the bytes accumulated since the previous
// chunk, never the whole recording. CapturedFrom/CapturedTo bound the
// interval the audio covers.
type Chunk struct {
	SessionID    string
	Data         []byte
	CapturedFrom time.Time
	CapturedTo   time.Time
}

// SessionConfig controls chunk cadence and source parameters.
type SessionConfig struct {
	ChunkInterval time.Duration
	Timeout       time.Duration
	Source        SourceConfig
}

// Session owns one capture lifecycle: it opens a Source, accumulates raw
// frames, and emits delta chunks on a fixed cadence along with a
// once-per-second elapsed tick. Stop is idempotent and safe to call at any
// point, including while Start is still acquiring the source.
type Session struct {
	config SessionConfig
	source Source
	log    zerolog.Logger

	mu      sync.Mutex
	state   State
	id      string
	cancel  context.CancelFunc
	started time.Time

	chunks  chan Chunk
	elapsed chan int

	wg sync.WaitGroup
}

func NewSession(config SessionConfig, source Source, log zerolog.Logger) *Session {
	return &Session{
		config:  config,
		source:  source,
		log:     log,
		state:   StateIdle,
		chunks:  make(chan Chunk, 8),
		elapsed: make(chan int, 4),
	}
}

// Chunks delivers delta chunks while the session is active.
func (s *Session) Chunks() <-chan Chunk { return s.chunks }

// Elapsed delivers whole elapsed seconds once per second while active.
func (s *Session) Elapsed() <-chan int { return s.elapsed }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the identifier of the current (or last) session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Start opens the source for the given target and begins emission. Only
// valid from idle. An empty target means no microphone was ever selected.
func (s *Session) Start(ctx context.Context, target string) error {
	if target == "" {
		return ErrNoMicrophoneSelected
	}

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateError {
		state := s.state
		s.mu.Unlock()
		if state == StateActive || state == StateStarting {
			return ErrAlreadyActive
		}
		return fmt.Errorf("cannot start capture from state %q", state)
	}
	s.state = StateStarting
	s.id = uuid.NewString()
	id := s.id
	s.mu.Unlock()

	log := s.log.With().Str("session_id", id).Logger()

	var sessionCtx context.Context
	var cancel context.CancelFunc
	if s.config.Timeout > 0 {
		sessionCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
	} else {
		sessionCtx, cancel = context.WithCancel(ctx)
	}

	frameCh, errCh, err := s.source.Open(sessionCtx, target)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		return &AcquisitionError{Cause: err}
	}

	s.mu.Lock()
	// Stop — or a Stop followed by a newer Start — may have raced with the
	// open. Going live requires both the starting state and that this call
	// still owns it; a stale open must abandon its stream.
	if s.state != StateStarting || s.id != id {
		s.mu.Unlock()
		// Cancelling our own context tears down the stream this call
		// opened; the source may already be serving a newer start, so
		// Close must not be called here.
		cancel()
		return nil
	}
	s.state = StateActive
	s.cancel = cancel
	s.started = time.Now()
	// Counted under the lock so a racing Stop cannot Wait before the
	// run goroutine is registered.
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.CaptureStarted()
	log.Info().Str("target", target).Msg("capture session active")

	go s.run(sessionCtx, log, frameCh, errCh)

	return nil
}

// Stop halts emission and releases the source. Idempotent: calling it in
// any state is safe, including during Start.
func (s *Session) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateStopping:
		s.mu.Unlock()
		return
	case StateError:
		s.state = StateIdle
		s.mu.Unlock()
		return
	case StateStarting:
		// Start is still acquiring; flip the state so its post-open check
		// abandons the stream.
		s.state = StateStopping
		cancel := s.cancel
		s.cancel = nil
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	metrics.CaptureStopped()
	s.log.Info().Msg("capture session stopped")
}

// run accumulates frames and emits delta chunks on the configured cadence.
// Emission stops the moment the context is cancelled; no chunk crosses a
// stop boundary.
func (s *Session) run(ctx context.Context, log zerolog.Logger, frameCh <-chan Frame, errCh <-chan error) {
	defer s.wg.Done()
	defer s.source.Close()

	chunkTicker := time.NewTicker(s.config.ChunkInterval)
	defer chunkTicker.Stop()
	elapsedTicker := time.NewTicker(time.Second)
	defer elapsedTicker.Stop()

	var pending []byte
	windowStart := time.Now()

	emit := func(now time.Time) {
		// Once the session is stopping nothing may reach consumers.
		if ctx.Err() != nil {
			return
		}
		if len(pending) == 0 {
			windowStart = now
			return
		}
		chunk := Chunk{
			SessionID:    s.id,
			Data:         pending,
			CapturedFrom: windowStart,
			CapturedTo:   now,
		}
		pending = nil
		windowStart = now

		select {
		case s.chunks <- chunk:
			metrics.ChunkEmitted(len(chunk.Data))
		case <-ctx.Done():
		default:
			log.Warn().Int("bytes", len(chunk.Data)).Msg("chunk consumer lagging, dropping chunk")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-frameCh:
			if !ok {
				// Source ended on its own (process exit). Flush what we
				// have and settle.
				emit(time.Now())
				s.settleAfterSourceEnd(log)
				return
			}
			pending = append(pending, frame.Data...)

		case err, ok := <-errCh:
			if ok && err != nil {
				log.Error().Err(err).Msg("capture source failed")
				s.settleAfterSourceEnd(log)
				return
			}

		case now := <-chunkTicker.C:
			emit(now)

		case <-elapsedTicker.C:
			s.mu.Lock()
			started := s.started
			s.mu.Unlock()
			select {
			case s.elapsed <- int(time.Since(started).Seconds()):
			default:
			}
		}
	}
}

// settleAfterSourceEnd returns the session to idle when the source dies
// underneath an active session rather than through Stop.
func (s *Session) settleAfterSourceEnd(log zerolog.Logger) {
	s.mu.Lock()
	if s.state == StateActive {
		s.state = StateIdle
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		metrics.CaptureStopped()
		log.Info().Msg("capture source ended, session idle")
	}
	s.mu.Unlock()
}
