package notify

import (
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

type MessageType string

const (
	CaptureStarted         MessageType = "capture_started"
	CaptureStopped         MessageType = "capture_stopped"
	TranscriptionFailed    MessageType = "transcription_failed"
	DispatchFailed         MessageType = "dispatch_failed"
	MicrophoneAccessDenied MessageType = "microphone_access_denied"
	RecognitionRestarting  MessageType = "recognition_restarting"
	AssistantNotConfigured MessageType = "assistant_not_configured"
	ConfigReloaded         MessageType = "config_reloaded"
)

// Message is what gets shown to the user. Blocking messages require user
// action (permission or precondition failures); the rest are soft
// notifications the pipeline recovers from on its own.
type Message struct {
	Title    string
	Body     string
	Blocking bool
}

// Def couples a message type with its config key and defaults.
type Def struct {
	Type         MessageType
	ConfigKey    string
	DefaultTitle string
	DefaultBody  string
	Blocking     bool
}

var MessageDefs = []Def{
	{Type: CaptureStarted, ConfigKey: "capture_started", DefaultTitle: "Voxprep", DefaultBody: "Listening"},
	{Type: CaptureStopped, ConfigKey: "capture_stopped", DefaultTitle: "Voxprep", DefaultBody: "Capture stopped"},
	{Type: TranscriptionFailed, ConfigKey: "transcription_failed", DefaultTitle: "Voxprep", DefaultBody: "Transcription failed, capture continues"},
	{Type: DispatchFailed, ConfigKey: "dispatch_failed", DefaultTitle: "Voxprep", DefaultBody: "Could not reach the assistant"},
	{Type: MicrophoneAccessDenied, ConfigKey: "microphone_access_denied", DefaultTitle: "Voxprep", DefaultBody: "Microphone access denied - re-grant access and restart capture", Blocking: true},
	{Type: RecognitionRestarting, ConfigKey: "recognition_restarting", DefaultTitle: "Voxprep", DefaultBody: "Speech recognition restarting"},
	{Type: AssistantNotConfigured, ConfigKey: "assistant_not_configured", DefaultTitle: "Voxprep", DefaultBody: "Assistant API key is not configured", Blocking: true},
	{Type: ConfigReloaded, ConfigKey: "config_reloaded", DefaultTitle: "Voxprep", DefaultBody: "Configuration reloaded"},
}

// DefaultMessages returns the built-in message set.
func DefaultMessages() map[MessageType]Message {
	out := make(map[MessageType]Message, len(MessageDefs))
	for _, def := range MessageDefs {
		out[def.Type] = Message{Title: def.DefaultTitle, Body: def.DefaultBody, Blocking: def.Blocking}
	}
	return out
}

type Notifier interface {
	Notify(t MessageType)
	Error(msg string)
}

// Desktop sends notifications via notify-send. Blocking messages are sent
// with critical urgency so they persist until dismissed.
type Desktop struct {
	Messages map[MessageType]Message
}

func (d Desktop) Notify(t MessageType) {
	msg, ok := d.messages()[t]
	if !ok {
		return
	}
	args := []string{"-a", "Voxprep"}
	if msg.Blocking {
		args = append(args, "-u", "critical")
	}
	args = append(args, msg.Title, msg.Body)
	_ = exec.Command("notify-send", args...).Run()
}

func (d Desktop) Error(msg string) {
	_ = exec.Command("notify-send", "-a", "Voxprep", "-u", "critical", msg).Run()
}

func (d Desktop) messages() map[MessageType]Message {
	if d.Messages != nil {
		return d.Messages
	}
	return DefaultMessages()
}

// Log writes notifications to the structured log instead of the desktop.
type Log struct {
	Logger   zerolog.Logger
	Messages map[MessageType]Message
}

func (l Log) Notify(t MessageType) {
	msg, ok := l.messages()[t]
	if !ok {
		return
	}
	ev := l.Logger.Info()
	if msg.Blocking {
		ev = l.Logger.Warn()
	}
	ev.Str("type", string(t)).Msg(msg.Body)
}

func (l Log) Error(msg string) {
	l.Logger.Error().Msg(msg)
}

func (l Log) messages() map[MessageType]Message {
	if l.Messages != nil {
		return l.Messages
	}
	return DefaultMessages()
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) Notify(t MessageType) {}
func (Nop) Error(msg string)     {}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	types  []MessageType
	errors []string
}

func (r *Recorder) Notify(t MessageType) {
	r.mu.Lock()
	r.types = append(r.types, t)
	r.mu.Unlock()
}

func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}

func (r *Recorder) Types() []MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MessageType, len(r.types))
	copy(out, r.types)
	return out
}

func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.errors))
	copy(out, r.errors)
	return out
}
