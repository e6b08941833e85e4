package device

import (
	"context"
	"errors"
)

type Kind string

const (
	// KindAudioInput is a real capture source (microphone).
	KindAudioInput Kind = "audioinput"
	// KindMonitor is the loopback of an output sink, used for the
	// display/tab-audio capture variant.
	KindMonitor Kind = "monitor"
)

// Device identifies one enumerable audio source. Identity is the ID; the
// label is for humans only.
type Device struct {
	ID    string
	Label string
	Kind  Kind
}

var (
	ErrPermissionDenied = errors.New("audio capture permission denied")
	ErrNoDevicesFound   = errors.New("no audio input devices found")
)

// Platform is the permission/enumeration surface of the audio stack.
// Enumeration is pull-based; the hardware set may change between calls.
type Platform interface {
	RequestAudioAccess(ctx context.Context) error
	EnumerateDevices(ctx context.Context) ([]Device, error)
}
