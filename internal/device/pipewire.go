package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PipeWire implements Platform on top of the PipeWire command-line tools.
type PipeWire struct {
	Log zerolog.Logger
}

// RequestAudioAccess verifies that the audio server is reachable. On a
// desktop daemon this is the permission gate: an unreachable or denied
// server maps to ErrPermissionDenied.
func (p *PipeWire) RequestAudioAccess(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := exec.CommandContext(checkCtx, "pw-cli", "info").Run(); err != nil {
		return fmt.Errorf("%w: PipeWire not running or accessible: %v", ErrPermissionDenied, err)
	}
	return nil
}

// EnumerateDevices lists all PipeWire sources, including sink monitors.
func (p *PipeWire) EnumerateDevices(ctx context.Context) ([]Device, error) {
	enumCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out, err := exec.CommandContext(enumCtx, "pactl", "list", "short", "sources").Output()
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := parseSources(string(out))
	p.Log.Debug().Int("count", len(devices)).Msg("enumerated audio sources")
	return devices, nil
}

// parseSources parses `pactl list short sources` output. Each line is
// tab-separated: index, name, module, sample spec, state.
func parseSources(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		kind := KindAudioInput
		if strings.HasSuffix(name, ".monitor") {
			kind = KindMonitor
		}
		devices = append(devices, Device{
			ID:    name,
			Label: labelFromName(name),
			Kind:  kind,
		})
	}
	return devices
}

// labelFromName derives a readable label from a PipeWire node name like
// "alsa_input.pci-0000_00_1f.3.analog-stereo".
func labelFromName(name string) string {
	label := strings.TrimSuffix(name, ".monitor")
	label = strings.TrimPrefix(label, "alsa_input.")
	label = strings.TrimPrefix(label, "alsa_output.")
	label = strings.ReplaceAll(label, "_", " ")
	label = strings.ReplaceAll(label, ".", " ")
	return label
}
