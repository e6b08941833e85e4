package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DisplayTarget routes capture to a monitor source instead of a
// microphone. Monitor source ids are passed through as-is.
const DisplayTarget = "display"

// Frame is a raw PCM buffer read from the audio source.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// Source produces raw audio frames for a capture target.
type Source interface {
	// Open begins reading from the given target. The frame channel is
	// closed when the source stops; the error channel carries at most
	// one fatal error.
	Open(ctx context.Context, target string) (<-chan Frame, <-chan error, error)
	Close()
}

type SourceConfig struct {
	SampleRate        int
	Channels          int
	Format            string
	BufferSize        int
	ChannelBufferSize int
}

// PipeWireSource reads PCM audio from pw-record's stdout.
type PipeWireSource struct {
	config SourceConfig
	log    zerolog.Logger

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewPipeWireSource(config SourceConfig, log zerolog.Logger) *PipeWireSource {
	return &PipeWireSource{config: config, log: log}
}

func (s *PipeWireSource) Open(ctx context.Context, target string) (<-chan Frame, <-chan error, error) {
	if err := s.validateConfig(); err != nil {
		return nil, nil, err
	}

	if _, err := exec.LookPath("pw-record"); err != nil {
		return nil, nil, fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}

	sourceCtx, cancel := context.WithCancel(ctx)

	frameCh := make(chan Frame, s.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.captureLoop(sourceCtx, target, frameCh, errCh)

	return frameCh, errCh, nil
}

func (s *PipeWireSource) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *PipeWireSource) captureLoop(ctx context.Context, target string, frameCh chan<- Frame, errCh chan<- error) {
	defer func() {
		close(frameCh)
		close(errCh)

		// Ensure any child process is reaped.
		s.mu.Lock()
		if s.cmd != nil {
			_ = s.cmd.Wait()
			s.cmd = nil
		}
		s.cancel = nil
		s.mu.Unlock()

		s.wg.Done()
	}()

	args := s.buildPwRecordArgs(target)
	cmd := exec.CommandContext(ctx, "pw-record", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.emitErr(errCh, fmt.Errorf("create stdout pipe: %w", err))
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.emitErr(errCh, fmt.Errorf("create stderr pipe: %w", err))
		return
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	if err := cmd.Start(); err != nil {
		s.emitErr(errCh, fmt.Errorf("start pw-record: %w", err))
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.log.Debug().Str("line", scanner.Text()).Msg("pw-record stderr")
		}
	}()

	buffer := make([]byte, s.config.BufferSize)
	var droppedCount int
	lastDropLog := time.Now()

	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			frameData := make([]byte, n)
			copy(frameData, buffer[:n])

			frame := Frame{Data: frameData, Timestamp: time.Now()}

			select {
			case frameCh <- frame:
			case <-ctx.Done():
				return
			default:
				droppedCount++
				if time.Since(lastDropLog) > time.Second {
					s.log.Warn().Int("frames", droppedCount).Msg("dropped audio frames due to backpressure")
					lastDropLog = time.Now()
					droppedCount = 0
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return
			}
			s.emitErr(errCh, fmt.Errorf("read audio: %w", readErr))
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *PipeWireSource) emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
	s.log.Error().Err(err).Msg("capture source error")
}

func (s *PipeWireSource) buildPwRecordArgs(target string) []string {
	args := []string{
		"--format", s.config.Format,
		"--rate", strconv.Itoa(s.config.SampleRate),
		"--channels", strconv.Itoa(s.config.Channels),
		"-", // stdout
	}
	if target != "" && target != DisplayTarget {
		args = append(args, "--target", target)
	}
	return args
}

func (s *PipeWireSource) validateConfig() error {
	if s.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", s.config.SampleRate)
	}
	if s.config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", s.config.Channels)
	}
	if s.config.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", s.config.BufferSize)
	}
	if s.config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", s.config.ChannelBufferSize)
	}
	if s.config.Format == "" {
		return fmt.Errorf("invalid Format: empty")
	}
	return nil
}
