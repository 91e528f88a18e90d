package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestColorFunc(t *testing.T) {
	original := supportsColor
	defer SetColor(original)

	funcs := []func(string) string{
		ColorSuccess,
		ColorError,
		ColorWarning,
		ColorInfo,
		ColorProgress,
		ColorBold,
		ColorDim,
	}

	SetColor(true)
	for _, fn := range funcs {
		if got := fn("text"); got == "text" || !strings.Contains(got, "text") {
			t.Errorf("expected colored output, got %q", got)
		}
	}

	SetColor(false)
	for _, fn := range funcs {
		if got := fn("text"); got != "text" {
			t.Errorf("expected plain text, got %q", got)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
}

func TestStatusColor(t *testing.T) {
	original := supportsColor
	defer SetColor(original)
	SetColor(false)

	if got := StatusColor(""); got != "absent" {
		t.Errorf("StatusColor(\"\") = %q, want absent", got)
	}
	if got := StatusColor("creating"); got != "creating" {
		t.Errorf("StatusColor(creating) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.duration); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
		}
	}
}
