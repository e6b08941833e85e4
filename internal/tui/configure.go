package tui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"

	"github.com/voxprep/voxprep/internal/config"
)

// ConfigureResult holds the configuration result from the wizard.
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// AllProviders is the list of supported providers.
var AllProviders = []string{"openai", "openrouter", "deepgram"}

var providerDisplayNames = map[string]string{
	"openai":     "OpenAI",
	"openrouter": "OpenRouter",
	"deepgram":   "Deepgram",
}

// jobTypes are the built-in interview profiles; free-form input is also
// accepted.
var jobTypes = []string{
	"software engineering",
	"frontend development",
	"backend development",
	"data science",
	"devops",
	"product management",
}

type section string

const (
	sectionProviders     section = "providers"
	sectionCapture       section = "capture"
	sectionAssistant     section = "assistant"
	sectionRecognition   section = "recognition"
	sectionNotifications section = "notifications"
	sectionSaveExit      section = "save_exit"
	sectionDiscardExit   section = "discard_exit"
)

// Run starts the configuration wizard on the given config.
func Run(existingConfig *config.Config) (*ConfigureResult, error) {
	cfg := existingConfig
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		selected, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch selected {
		case sectionSaveExit:
			if err := cfg.Validate(); err != nil {
				fmt.Println(StyleError.Render("Configuration invalid: " + err.Error()))
				if !confirm("Keep editing?") {
					return &ConfigureResult{Cancelled: true}, nil
				}
				continue
			}
			return &ConfigureResult{Config: cfg}, nil

		case sectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case sectionProviders:
			editProviders(cfg)

		case sectionCapture:
			editCapture(cfg)

		case sectionAssistant:
			editAssistant(cfg)

		case sectionRecognition:
			editRecognition(cfg)

		case sectionNotifications:
			editNotifications(cfg)
		}
	}
}

func selectSection(cfg *config.Config) (section, error) {
	options := []huh.Option[section]{
		huh.NewOption(formatProvidersLabel(cfg), sectionProviders),
		huh.NewOption("Capture & Transcription", sectionCapture),
		huh.NewOption(formatAssistantLabel(cfg), sectionAssistant),
		huh.NewOption(formatRecognitionLabel(cfg), sectionRecognition),
		huh.NewOption("Notifications", sectionNotifications),
		huh.NewOption("Save & Exit", sectionSaveExit),
		huh.NewOption("Discard & Exit", sectionDiscardExit),
	}

	var selected section
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[section]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func formatProvidersLabel(cfg *config.Config) string {
	configured := configuredProviders(cfg)
	if len(configured) == 0 {
		return "API Providers (none configured)"
	}
	return fmt.Sprintf("API Providers (%s)", strings.Join(configured, ", "))
}

func formatAssistantLabel(cfg *config.Config) string {
	return fmt.Sprintf("Interview Assistant (%s)", cfg.Assistant.JobType)
}

func formatRecognitionLabel(cfg *config.Config) string {
	if cfg.Recognition.Enabled {
		return "Live Recognition (enabled)"
	}
	return "Live Recognition (disabled)"
}

func configuredProviders(cfg *config.Config) []string {
	var names []string
	for _, p := range AllProviders {
		if cfg.ResolveAPIKey(p) != "" {
			names = append(names, providerDisplayNames[p])
		}
	}
	return names
}

func editProviders(cfg *config.Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.ProviderConfig)
	}

	var fields []huh.Field
	keys := make(map[string]*string, len(AllProviders))
	for _, p := range AllProviders {
		key := cfg.Providers[p].APIKey
		keys[p] = &key
		fields = append(fields, huh.NewInput().
			Title(providerDisplayNames[p]+" API Key").
			Description("Leave empty to use the environment variable").
			EchoMode(huh.EchoModePassword).
			Value(keys[p]))
	}

	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return
	}

	for p, key := range keys {
		cfg.Providers[p] = config.ProviderConfig{APIKey: strings.TrimSpace(*key)}
	}
}

func editCapture(cfg *config.Config) {
	interval := formatSeconds(cfg.Capture.ChunkInterval)
	minBytes := strconv.Itoa(cfg.Transcription.MinBytes)

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Chunk interval (seconds)").
			Description("How often captured audio is sliced for transcription").
			Value(&interval).
			Validate(validateSeconds),
		huh.NewInput().
			Title("Minimum chunk size (bytes)").
			Description("Smaller chunks are treated as silence").
			Value(&minBytes).
			Validate(validateInt),
	)).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return
	}

	cfg.Capture.ChunkInterval = parseSeconds(interval, cfg.Capture.ChunkInterval)
	if n, err := strconv.Atoi(minBytes); err == nil {
		cfg.Transcription.MinBytes = n
	}
}

func editAssistant(cfg *config.Config) {
	jobType := cfg.Assistant.JobType
	model := cfg.Assistant.Model

	options := make([]huh.Option[string], 0, len(jobTypes)+1)
	found := false
	for _, jt := range jobTypes {
		options = append(options, huh.NewOption(jt, jt))
		if jt == jobType {
			found = true
		}
	}
	if !found && jobType != "" {
		options = append(options, huh.NewOption(jobType, jobType))
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Job type").
			Description("Answers are tailored to this interview profile").
			Options(options...).
			Value(&jobType),
		huh.NewInput().
			Title("Model").
			Description("OpenRouter model id").
			Value(&model),
	)).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return
	}

	cfg.Assistant.JobType = jobType
	if strings.TrimSpace(model) != "" {
		cfg.Assistant.Model = strings.TrimSpace(model)
	}
}

func editRecognition(cfg *config.Config) {
	enabled := cfg.Recognition.Enabled

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Enable live recognition?").
			Description("Streams audio to Deepgram for a live transcript").
			Value(&enabled),
	)).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return
	}
	cfg.Recognition.Enabled = enabled
}

func editNotifications(cfg *config.Config) {
	enabled := cfg.Notifications.Enabled
	kind := cfg.Notifications.Type
	if kind == "" {
		kind = "desktop"
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Enable notifications?").
			Value(&enabled),
		huh.NewSelect[string]().
			Title("Notification backend").
			Options(
				huh.NewOption("Desktop (notify-send)", "desktop"),
				huh.NewOption("Log only", "log"),
				huh.NewOption("None", "none"),
			).
			Value(&kind),
	)).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return
	}
	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = kind
}

func confirm(title string) bool {
	answer := true
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&answer),
	)).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return false
	}
	return answer
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func parseSeconds(s string, fallback time.Duration) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}

func validateSeconds(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return fmt.Errorf("enter a positive number of seconds")
	}
	return nil
}

func validateInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive integer")
	}
	return nil
}

func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}
