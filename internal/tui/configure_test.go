package tui

import (
	"testing"
	"time"
)

func TestParseSeconds(t *testing.T) {
	fallback := 3 * time.Second

	cases := []struct {
		input string
		want  time.Duration
	}{
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{" 1.5 ", 1500 * time.Millisecond},
		{"0", fallback},
		{"-1", fallback},
		{"abc", fallback},
		{"", fallback},
	}

	for _, c := range cases {
		if got := parseSeconds(c.input, fallback); got != c.want {
			t.Errorf("parseSeconds(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestFormatSecondsRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{time.Second, 3 * time.Second, 500 * time.Millisecond} {
		if got := parseSeconds(formatSeconds(d), 0); got != d {
			t.Errorf("round trip of %v gave %v", d, got)
		}
	}
}

func TestValidateSeconds(t *testing.T) {
	if err := validateSeconds("2.5"); err != nil {
		t.Errorf("expected 2.5 to be valid, got %v", err)
	}
	for _, bad := range []string{"0", "-3", "nope", ""} {
		if err := validateSeconds(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestValidateInt(t *testing.T) {
	if err := validateInt("1000"); err != nil {
		t.Errorf("expected 1000 to be valid, got %v", err)
	}
	for _, bad := range []string{"0", "-5", "1.5", "big", ""} {
		if err := validateInt(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestProviderDisplayNamesCoverAllProviders(t *testing.T) {
	for _, p := range AllProviders {
		if providerDisplayNames[p] == "" {
			t.Errorf("provider %q has no display name", p)
		}
	}
}
