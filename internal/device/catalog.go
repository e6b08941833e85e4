package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Catalog enumerates audio input devices and tracks the current selection.
// Selection changes are delivered through an explicit subscription rather
// than being tied to any UI refresh cycle, so consumers can react (stop
// then restart capture) without polling.
type Catalog struct {
	platform Platform
	log      zerolog.Logger

	mu       sync.Mutex
	selected *Device
	onChange []func(Device)
}

func NewCatalog(platform Platform, log zerolog.Logger) *Catalog {
	return &Catalog{platform: platform, log: log}
}

// ListInputs requests audio access, enumerates devices, and filters to the
// audio-input kind. Each call is independent: it re-enumerates from
// scratch and may be used as a manual refresh.
func (c *Catalog) ListInputs(ctx context.Context) ([]Device, error) {
	if err := c.platform.RequestAudioAccess(ctx); err != nil {
		return nil, err
	}

	all, err := c.platform.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	var inputs []Device
	for _, d := range all {
		if d.Kind == KindAudioInput {
			inputs = append(inputs, d)
		}
	}

	if len(inputs) == 0 {
		return nil, ErrNoDevicesFound
	}
	return inputs, nil
}

// ListMonitors returns the monitor sources available for display-audio
// capture.
func (c *Catalog) ListMonitors(ctx context.Context) ([]Device, error) {
	if err := c.platform.RequestAudioAccess(ctx); err != nil {
		return nil, err
	}

	all, err := c.platform.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	var monitors []Device
	for _, d := range all {
		if d.Kind == KindMonitor {
			monitors = append(monitors, d)
		}
	}
	return monitors, nil
}

// SelectDefault selects the first device when nothing is selected yet.
// No-op when a selection already exists or the list is empty.
func (c *Catalog) SelectDefault(devices []Device) {
	c.mu.Lock()
	if c.selected != nil || len(devices) == 0 {
		c.mu.Unlock()
		return
	}
	d := devices[0]
	c.selected = &d
	handlers := append([]func(Device){}, c.onChange...)
	c.mu.Unlock()

	c.log.Info().Str("device", d.ID).Msg("selected default input device")
	for _, fn := range handlers {
		fn(d)
	}
}

// Select changes the current selection and notifies subscribers. Selecting
// the already-selected device is a no-op.
func (c *Catalog) Select(d Device) {
	c.mu.Lock()
	if c.selected != nil && c.selected.ID == d.ID {
		c.mu.Unlock()
		return
	}
	c.selected = &d
	handlers := append([]func(Device){}, c.onChange...)
	c.mu.Unlock()

	c.log.Info().Str("device", d.ID).Msg("input device selected")
	for _, fn := range handlers {
		fn(d)
	}
}

// Selected returns the current selection, if any.
func (c *Catalog) Selected() (Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return Device{}, false
	}
	return *c.selected, true
}

// OnChange registers a handler invoked on every selection change.
func (c *Catalog) OnChange(fn func(Device)) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}
