package gate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/capture"
	"github.com/voxprep/voxprep/internal/metrics"
	"github.com/voxprep/voxprep/internal/notify"
	"github.com/voxprep/voxprep/internal/transcriber"
)

// Segment is a finalized transcription result. CompletedAt is the moment
// the transcription finished, not when the audio was captured: consumers
// order segments last-write-wins by completion.
type Segment struct {
	SubmissionID string
	SessionID    string
	Text         string
	CompletedAt  time.Time
}

type Config struct {
	// MinInterval is the minimum time between accepted submissions,
	// measured from the last acceptance.
	MinInterval time.Duration
	// MinBytes is the smallest chunk worth transcribing.
	MinBytes int
}

// Gate throttles chunk submissions to the transcription collaborator.
// Chunks arriving too fast or too small are dropped silently; accepted
// chunks are transcribed asynchronously and surface as Segments on Out.
type Gate struct {
	config   Config
	adapter  transcriber.Adapter
	notifier notify.Notifier
	log      zerolog.Logger

	mu           sync.Mutex
	lastAccepted time.Time

	out chan Segment
	wg  sync.WaitGroup
}

func New(config Config, adapter transcriber.Adapter, notifier notify.Notifier, log zerolog.Logger) *Gate {
	return &Gate{
		config:   config,
		adapter:  adapter,
		notifier: notifier,
		log:      log,
		out:      make(chan Segment, 16),
	}
}

// Out delivers finalized segments in completion order.
func (g *Gate) Out() <-chan Segment { return g.out }

// Submit offers a chunk to the gate. It returns true when the chunk was
// accepted for transcription. Dropped chunks produce no segment and no
// notification.
func (g *Gate) Submit(ctx context.Context, chunk capture.Chunk) bool {
	if len(chunk.Data) < g.config.MinBytes {
		metrics.ChunkDropped("size")
		g.log.Debug().Int("bytes", len(chunk.Data)).Msg("chunk below size threshold, dropped")
		return false
	}

	g.mu.Lock()
	now := time.Now()
	if !g.lastAccepted.IsZero() && now.Sub(g.lastAccepted) < g.config.MinInterval {
		g.mu.Unlock()
		metrics.ChunkDropped("rate")
		g.log.Debug().Msg("chunk inside rate window, dropped")
		return false
	}
	g.lastAccepted = now
	g.mu.Unlock()

	submissionID := uuid.NewString()
	g.wg.Add(1)
	go g.transcribe(ctx, submissionID, chunk)
	return true
}

// Wait blocks until all in-flight transcriptions have completed.
func (g *Gate) Wait() { g.wg.Wait() }

func (g *Gate) transcribe(ctx context.Context, submissionID string, chunk capture.Chunk) {
	defer g.wg.Done()

	log := g.log.With().Str("submission_id", submissionID).Logger()

	start := time.Now()
	text, err := g.adapter.Transcribe(ctx, chunk.Data)
	elapsed := time.Since(start)

	if err != nil {
		metrics.TranscriptionDone("error", elapsed)
		log.Error().Err(err).Msg("transcription failed")
		g.notifier.Notify(notify.TranscriptionFailed)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		// Empty results are silence or noise; dropping them is final,
		// there is no retry.
		metrics.TranscriptionDone("empty", elapsed)
		log.Debug().Msg("empty transcription, dropped")
		return
	}

	metrics.TranscriptionDone("ok", elapsed)

	segment := Segment{
		SubmissionID: submissionID,
		SessionID:    chunk.SessionID,
		Text:         text,
		CompletedAt:  time.Now(),
	}

	select {
	case g.out <- segment:
	case <-ctx.Done():
	}
}
