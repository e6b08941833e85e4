package recognition

import (
	"context"
	"errors"

	"github.com/voxprep/voxprep/internal/capture"
)

// ErrRecognitionUnsupported is returned when no streaming engine is
// configured for the current provider setup.
var ErrRecognitionUnsupported = errors.New("speech recognition not supported with current configuration")

// ErrAccessDenied marks a credential or access failure. Sessions treat it
// as terminal and never retry.
var ErrAccessDenied = errors.New("recognition access denied")

// ErrorKind classifies engine failures for the session's recovery policy.
type ErrorKind string

const (
	// KindTransient covers network hiccups and engine-side errors worth
	// a restart.
	KindTransient ErrorKind = "transient"
	// KindPermission covers credential and access failures. The session
	// never restarts after one of these.
	KindPermission ErrorKind = "permission"
)

// Event is a typed occurrence on the engine's event stream.
type Event interface{ isEvent() }

// Result carries recognized speech. Interim is an in-progress hypothesis
// that later events replace; Final is a finished utterance to append to
// the transcript. Exactly one of the two is set.
type Result struct {
	Interim string
	Final   string
}

// ErrorEvent reports an engine failure.
type ErrorEvent struct {
	Kind ErrorKind
	Err  error
}

// Ended signals that the engine finished on its own, without an error and
// without Stop being called.
type Ended struct{}

func (Result) isEvent()     {}
func (ErrorEvent) isEvent() {}
func (Ended) isEvent()      {}

// Engine is a streaming speech recognizer. Start consumes audio frames
// and produces events until the context is cancelled or the stream ends;
// the event channel is closed when the engine stops. Start may be called
// again after Stop.
type Engine interface {
	Start(ctx context.Context, frames <-chan capture.Frame) (<-chan Event, error)
	Stop(ctx context.Context) error
}
