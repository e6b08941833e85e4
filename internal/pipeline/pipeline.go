package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/assistant"
	"github.com/voxprep/voxprep/internal/capture"
	"github.com/voxprep/voxprep/internal/config"
	"github.com/voxprep/voxprep/internal/device"
	"github.com/voxprep/voxprep/internal/gate"
	"github.com/voxprep/voxprep/internal/notify"
	"github.com/voxprep/voxprep/internal/recognition"
	"github.com/voxprep/voxprep/internal/transcriber"
)

// Status is a snapshot of the whole pipeline for the status command.
type Status struct {
	Capturing        bool   `json:"capturing"`
	CaptureState     string `json:"capture_state"`
	RecognitionState string `json:"recognition_state"`
	Device           string `json:"device"`
	JobType          string `json:"job_type"`
	ElapsedSeconds   int    `json:"elapsed_seconds"`
	Transcript       string `json:"transcript"`
	LastAnswer       string `json:"last_answer"`
}

// Pipeline wires the capture session, the transcription gate, the
// recognition session, and the assistant dispatcher together. The capture
// path and the recognition path run in parallel over separate audio
// streams, the way the two browser capture surfaces did independently.
type Pipeline struct {
	cfg      *config.Config
	notifier notify.Notifier
	log      zerolog.Logger

	catalog    *device.Catalog
	session    *capture.Session
	gate       *gate.Gate
	dispatcher *assistant.Dispatcher

	recSession *recognition.Session
	recSource  capture.Source

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	elapsed    int
	lastAnswer string

	wg sync.WaitGroup
}

// New assembles a pipeline from configuration. Recognition is optional:
// when disabled or unconfigured the capture path still works alone.
func New(cfg *config.Config, notifier notify.Notifier, log zerolog.Logger) (*Pipeline, error) {
	platform := &device.PipeWire{Log: log.With().Str("component", "device").Logger()}
	catalog := device.NewCatalog(platform, log.With().Str("component", "catalog").Logger())

	sourceCfg := capture.SourceConfig{
		SampleRate:        cfg.Capture.SampleRate,
		Channels:          cfg.Capture.Channels,
		Format:            pwFormat(cfg.Capture.Format),
		BufferSize:        cfg.Capture.BufferSize,
		ChannelBufferSize: cfg.Capture.ChannelBufferSize,
	}
	source := capture.NewPipeWireSource(sourceCfg, log.With().Str("component", "source").Logger())

	session := capture.NewSession(capture.SessionConfig{
		ChunkInterval: cfg.Capture.ChunkInterval,
		Timeout:       cfg.Capture.Timeout,
		Source:        sourceCfg,
	}, source, log.With().Str("component", "capture").Logger())

	adapter, err := transcriber.NewAdapter(cfg.Transcription.Provider, transcriber.Config{
		APIKey:     cfg.ResolveAPIKey(cfg.Transcription.Provider),
		Model:      cfg.Transcription.Model,
		Language:   cfg.Transcription.Language,
		SampleRate: cfg.Capture.SampleRate,
		Channels:   cfg.Capture.Channels,
	})
	if err != nil {
		return nil, err
	}

	g := gate.New(gate.Config{
		MinInterval: cfg.Transcription.MinInterval,
		MinBytes:    cfg.Transcription.MinBytes,
	}, adapter, notifier, log.With().Str("component", "gate").Logger())

	client := assistant.NewOpenRouterClient(assistant.ClientConfig{
		APIKey:      cfg.ResolveAPIKey(cfg.Assistant.Provider),
		Model:       cfg.Assistant.Model,
		MaxTokens:   cfg.Assistant.MaxTokens,
		Temperature: cfg.Assistant.Temperature,
	}, log.With().Str("component", "assistant").Logger())

	dispatcher := assistant.NewDispatcher(assistant.DispatcherConfig{
		ContextSegments: cfg.Assistant.ContextSegments,
		JobType:         cfg.Assistant.JobType,
	}, client, notifier, log.With().Str("component", "dispatcher").Logger())

	p := &Pipeline{
		cfg:        cfg,
		notifier:   notifier,
		log:        log.With().Str("component", "pipeline").Logger(),
		catalog:    catalog,
		session:    session,
		gate:       g,
		dispatcher: dispatcher,
	}

	if cfg.Recognition.Enabled {
		key := cfg.ResolveAPIKey(cfg.Recognition.Provider)
		if key != "" {
			engine := recognition.NewDeepgramEngine(recognition.DeepgramConfig{
				APIKey:     key,
				Model:      cfg.Recognition.Model,
				Language:   cfg.Recognition.Language,
				SampleRate: cfg.Capture.SampleRate,
				Channels:   cfg.Capture.Channels,
			}, log.With().Str("component", "deepgram").Logger())
			p.recSession = recognition.NewSession(engine, recognition.SessionConfig{
				RestartDelay: cfg.Recognition.RestartDelay,
			}, notifier, log.With().Str("component", "recognition").Logger())
			p.recSource = capture.NewPipeWireSource(sourceCfg, log.With().Str("component", "rec-source").Logger())
		} else {
			log.Warn().Msg("recognition enabled but no provider key, continuing without it")
		}
	}

	p.watchDeviceChanges()

	return p, nil
}

// watchDeviceChanges restarts capture when the selected input changes. A
// device change never mutates a live stream: the session is torn down and
// reopened on the new target.
func (p *Pipeline) watchDeviceChanges() {
	p.catalog.OnChange(func(d device.Device) {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if !running {
			return
		}
		p.log.Info().Str("device", d.ID).Msg("input device changed, restarting capture")
		p.StopCapture()
		if err := p.StartCapture(context.Background()); err != nil {
			p.log.Error().Err(err).Msg("restart after device change failed")
		}
	})
}

// pwFormat maps the config's short format names onto pw-record's.
func pwFormat(format string) string {
	if format == "s16" {
		return "s16le"
	}
	return format
}

// Catalog exposes device listing and selection.
func (p *Pipeline) Catalog() *device.Catalog { return p.catalog }

// SelectDevice resolves the id against the current input list and makes
// it the active selection. A running capture restarts on the new device
// through the change subscription.
func (p *Pipeline) SelectDevice(ctx context.Context, id string) error {
	inputs, err := p.catalog.ListInputs(ctx)
	if err != nil {
		if errors.Is(err, device.ErrPermissionDenied) {
			p.notifier.Notify(notify.MicrophoneAccessDenied)
		}
		return err
	}
	for _, d := range inputs {
		if d.ID == id {
			p.catalog.Select(d)
			return nil
		}
	}
	return fmt.Errorf("unknown device %q", id)
}

// SetJobType updates the interview profile for subsequent dispatches.
func (p *Pipeline) SetJobType(jobType string) { p.dispatcher.SetJobType(jobType) }

// StartCapture begins a capture run on the currently selected device,
// selecting a default when nothing was picked yet.
func (p *Pipeline) StartCapture(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return capture.ErrAlreadyActive
	}
	p.mu.Unlock()

	target, err := p.resolveTarget(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	if err := p.session.Start(runCtx, target); err != nil {
		cancel()
		var acqErr *capture.AcquisitionError
		if errors.As(err, &acqErr) {
			p.notifier.Error("could not open audio device")
		}
		return err
	}

	p.mu.Lock()
	p.running = true
	p.cancel = cancel
	p.elapsed = 0
	p.mu.Unlock()

	p.wg.Add(1)
	go p.consumeCapture(runCtx)

	if p.recSession != nil {
		p.startRecognition(runCtx, target)
	}

	p.notifier.Notify(notify.CaptureStarted)
	return nil
}

func (p *Pipeline) resolveTarget(ctx context.Context) (string, error) {
	if selected, ok := p.catalog.Selected(); ok {
		return selected.ID, nil
	}
	if p.cfg.Capture.Device == capture.DisplayTarget {
		monitors, err := p.catalog.ListMonitors(ctx)
		if err == nil && len(monitors) > 0 {
			return monitors[0].ID, nil
		}
		// Fall through to pw-record's default monitor routing.
		return capture.DisplayTarget, nil
	}
	if p.cfg.Capture.Device != "" {
		return p.cfg.Capture.Device, nil
	}

	inputs, err := p.catalog.ListInputs(ctx)
	if err != nil {
		if errors.Is(err, device.ErrPermissionDenied) {
			p.notifier.Notify(notify.MicrophoneAccessDenied)
		}
		return "", err
	}
	p.catalog.SelectDefault(inputs)
	selected, ok := p.catalog.Selected()
	if !ok {
		return "", capture.ErrNoMicrophoneSelected
	}
	return selected.ID, nil
}

// startRecognition opens the parallel audio stream on the same resolved
// target the capture path runs on.
func (p *Pipeline) startRecognition(ctx context.Context, target string) {
	frames, errCh, err := p.recSource.Open(ctx, target)
	if err != nil {
		p.log.Error().Err(err).Msg("recognition audio source failed, continuing without recognition")
		return
	}

	// Drain source errors; the recognition session handles stream ends
	// through its own restart policy.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range errCh {
			if err != nil {
				p.log.Warn().Err(err).Msg("recognition source error")
			}
		}
	}()

	if err := p.recSession.Start(ctx, frames); err != nil {
		if errors.Is(err, recognition.ErrRecognitionUnsupported) {
			p.log.Info().Msg("recognition unsupported, capture continues alone")
			return
		}
		p.log.Error().Err(err).Msg("recognition start failed, capture continues alone")
		return
	}

	p.wg.Add(1)
	go p.consumeFinals(ctx)
}

// consumeCapture runs the capture side: chunks through the gate, gate
// segments into the dispatcher when recognition is absent, elapsed ticks
// and answers into the status snapshot.
func (p *Pipeline) consumeCapture(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case chunk := <-p.session.Chunks():
			p.gate.Submit(ctx, chunk)

		case segment := <-p.gate.Out():
			p.log.Info().Str("submission_id", segment.SubmissionID).Str("text", segment.Text).Msg("segment transcribed")
			// With a live recognition session its finals are the
			// authoritative dispatcher feed; gate segments then only
			// serve the transcript log.
			if p.recSession == nil {
				p.dispatcher.Ingest(ctx, segment.Text)
			}

		case seconds := <-p.session.Elapsed():
			p.mu.Lock()
			p.elapsed = seconds
			p.mu.Unlock()

		case answer := <-p.dispatcher.Answers():
			p.mu.Lock()
			p.lastAnswer = answer.Text
			p.mu.Unlock()
			p.log.Info().Str("job_type", answer.JobType).Msg("assistant answer ready")
		}
	}
}

func (p *Pipeline) consumeFinals(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case final := <-p.recSession.Finals():
			p.dispatcher.Ingest(ctx, final)
		}
	}
}

// StopCapture halts the run: recognition first, then capture, then the
// dispatcher's partial batch is discarded. Idempotent.
func (p *Pipeline) StopCapture() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if p.recSession != nil {
		p.recSession.Stop()
		p.recSource.Close()
	}
	p.session.Stop()
	p.dispatcher.FlushOnStop()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.notifier.Notify(notify.CaptureStopped)
}

// Status reports the current snapshot.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	elapsed := p.elapsed
	lastAnswer := p.lastAnswer
	running := p.running
	p.mu.Unlock()

	var deviceID string
	if selected, ok := p.catalog.Selected(); ok {
		deviceID = selected.ID
	}

	recState := string(recognition.StateStopped)
	transcript := ""
	if p.recSession != nil {
		recState = string(p.recSession.State())
		transcript = p.recSession.Display()
	}

	return Status{
		Capturing:        running,
		CaptureState:     string(p.session.State()),
		RecognitionState: recState,
		Device:           deviceID,
		JobType:          p.dispatcher.JobType(),
		ElapsedSeconds:   elapsed,
		Transcript:       transcript,
		LastAnswer:       lastAnswer,
	}
}
