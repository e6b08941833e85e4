package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/metrics"
	"github.com/voxprep/voxprep/internal/notify"
)

// Answer pairs a generated suggestion with the spoken text that produced
// it.
type Answer struct {
	SpokenText string
	Text       string
	JobType    string
}

type DispatcherConfig struct {
	// ContextSegments is how many finalized segments accumulate before a
	// dispatch fires.
	ContextSegments int
	JobType         string
}

// Dispatcher batches finalized transcript segments and asks the answer
// client for a suggestion once enough context has accumulated. The buffer
// is swapped atomically at the threshold so ingestion never waits on a
// network call; partial buffers are discarded on stop rather than flushed.
type Dispatcher struct {
	config   DispatcherConfig
	client   AnswerClient
	notifier notify.Notifier
	log      zerolog.Logger

	mu      sync.Mutex
	pending []string
	jobType string

	out chan Answer
	wg  sync.WaitGroup
}

func NewDispatcher(config DispatcherConfig, client AnswerClient, notifier notify.Notifier, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		config:   config,
		client:   client,
		notifier: notifier,
		log:      log,
		jobType:  config.JobType,
		out:      make(chan Answer, 4),
	}
}

// Answers delivers generated suggestions.
func (d *Dispatcher) Answers() <-chan Answer { return d.out }

// SetJobType changes the interview profile used for subsequent
// dispatches.
func (d *Dispatcher) SetJobType(jobType string) {
	d.mu.Lock()
	d.jobType = jobType
	d.mu.Unlock()
}

// JobType returns the current interview profile.
func (d *Dispatcher) JobType() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobType
}

// Pending returns how many segments are waiting for the next dispatch.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Ingest appends one finalized segment. When the buffer reaches the
// configured threshold it is swapped out and dispatched in the
// background.
func (d *Dispatcher) Ingest(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.mu.Lock()
	d.pending = append(d.pending, text)
	if len(d.pending) < d.config.ContextSegments {
		d.mu.Unlock()
		return
	}
	batch := d.pending
	d.pending = nil
	jobType := d.jobType
	d.mu.Unlock()

	d.wg.Add(1)
	go d.dispatch(ctx, jobType, strings.Join(batch, " "))
}

// FlushOnStop discards any partial buffer. A batch that never reached the
// threshold is dropped, not dispatched.
func (d *Dispatcher) FlushOnStop() {
	d.mu.Lock()
	discarded := len(d.pending)
	d.pending = nil
	d.mu.Unlock()

	if discarded > 0 {
		d.log.Debug().Int("segments", discarded).Msg("discarded partial batch on stop")
	}
}

// Wait blocks until in-flight dispatches finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) dispatch(ctx context.Context, jobType, spokenText string) {
	defer d.wg.Done()

	start := time.Now()
	answer, err := d.client.GenerateAnswer(ctx, jobType, spokenText)
	elapsed := time.Since(start)

	if err != nil {
		metrics.DispatchDone("error", elapsed)
		if errors.Is(err, ErrNotConfigured) {
			d.log.Warn().Msg("answer provider not configured, batch dropped")
			d.notifier.Notify(notify.AssistantNotConfigured)
			return
		}
		d.log.Error().Err(err).Msg("dispatch failed")
		d.notifier.Notify(notify.DispatchFailed)
		return
	}

	metrics.DispatchDone("ok", elapsed)

	select {
	case d.out <- Answer{SpokenText: spokenText, Text: answer, JobType: jobType}:
	case <-ctx.Done():
	}
}
