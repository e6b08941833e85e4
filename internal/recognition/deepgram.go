package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/capture"
)

const (
	deepgramBaseURL = "wss://api.deepgram.com"
	deepgramPath    = "/v1/listen"
)

// DeepgramConfig holds the live-transcription parameters.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Channels   int
}

// DeepgramEngine streams audio over Deepgram's live websocket API and
// turns its messages into typed events.
type DeepgramEngine struct {
	config DeepgramConfig
	log    zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

type deepgramWSResponse struct {
	Type        string           `json:"type"`
	Channel     *deepgramChannel `json:"channel,omitempty"`
	Error       *deepgramError   `json:"error,omitempty"`
	IsFinal     bool             `json:"is_final,omitempty"`
	SpeechFinal bool             `json:"speech_final,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives,omitempty"`
}

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type deepgramError struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

type deepgramCloseStream struct {
	Type string `json:"type"`
}

func NewDeepgramEngine(config DeepgramConfig, log zerolog.Logger) *DeepgramEngine {
	return &DeepgramEngine{config: config, log: log}
}

func (e *DeepgramEngine) Start(ctx context.Context, frames <-chan capture.Frame) (<-chan Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil, fmt.Errorf("engine already started")
	}

	engineCtx, cancel := context.WithCancel(ctx)

	wsURL := e.buildURL()
	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.config.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(engineCtx, wsURL, headers)
	if err != nil {
		cancel()
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("deepgram dial (status %d): %w", resp.StatusCode, ErrAccessDenied)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	e.conn = conn
	e.cancel = cancel
	e.started = true

	events := make(chan Event, 64)

	e.wg.Add(2)
	go e.writeLoop(engineCtx, frames)
	go e.readLoop(engineCtx, events)

	e.log.Info().Str("model", e.config.Model).Msg("deepgram live session connected")
	return events, nil
}

func (e *DeepgramEngine) buildURL() string {
	u, _ := url.Parse(deepgramBaseURL + deepgramPath)

	q := u.Query()
	q.Set("model", e.config.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(e.config.SampleRate))
	q.Set("channels", strconv.Itoa(e.config.Channels))
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	if e.config.Language != "" {
		q.Set("language", e.config.Language)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// writeLoop forwards captured audio frames to the websocket as binary
// messages until the context ends or the frame channel closes.
func (e *DeepgramEngine) writeLoop(ctx context.Context, frames <-chan capture.Frame) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				e.sendCloseStream()
				return
			}
			e.mu.Lock()
			conn := e.conn
			e.mu.Unlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
				e.log.Debug().Err(err).Msg("deepgram audio write failed")
				return
			}
		}
	}
}

func (e *DeepgramEngine) sendCloseStream() {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn != nil {
		_ = conn.WriteJSON(deepgramCloseStream{Type: "CloseStream"})
	}
}

// readLoop parses websocket messages into events. The events channel is
// closed when the loop exits.
func (e *DeepgramEngine) readLoop(ctx context.Context, events chan<- Event) {
	defer e.wg.Done()
	defer close(events)

	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				// normal shutdown
			default:
				// The server hanging up cleanly is a natural stream end,
				// not a failure.
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					events <- Ended{}
				} else {
					events <- ErrorEvent{Kind: KindTransient, Err: fmt.Errorf("websocket read: %w", err)}
				}
			}
			return
		}

		var resp deepgramWSResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			e.log.Debug().Err(err).Msg("deepgram message parse failed")
			continue
		}

		switch resp.Type {
		case "Results":
			if resp.Channel == nil || len(resp.Channel.Alternatives) == 0 {
				continue
			}
			transcript := resp.Channel.Alternatives[0].Transcript
			if transcript == "" {
				continue
			}
			if resp.IsFinal || resp.SpeechFinal {
				events <- Result{Final: transcript}
			} else {
				events <- Result{Interim: transcript}
			}

		case "Error":
			if resp.Error != nil {
				msg := resp.Error.Message
				if resp.Error.Description != "" {
					msg = fmt.Sprintf("%s: %s", msg, resp.Error.Description)
				}
				events <- ErrorEvent{Kind: KindTransient, Err: fmt.Errorf("deepgram: %s", msg)}
			}

		case "Metadata", "UtteranceEnd", "SpeechStarted":
			// informational only

		default:
			e.log.Debug().Str("type", resp.Type).Msg("unknown deepgram message type")
		}
	}
}

func (e *DeepgramEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	conn := e.conn
	e.started = false
	e.conn = nil
	e.cancel = nil
	e.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}

	e.wg.Wait()
	e.log.Info().Msg("deepgram live session closed")
	return nil
}
