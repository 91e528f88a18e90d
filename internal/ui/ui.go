// Package ui prints human-facing status output for the CLI. Structured
// diagnostics go through logrus; this package only handles the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"dwhctl/internal/cluster"

	"github.com/AlecAivazis/survey/v2"
)

// UI writes status lines unless quiet
type UI struct {
	Out     io.Writer
	Verbose bool
	Quiet   bool
	spinner *Spinner
	now     func() time.Time
}

// NewUI creates a UI writing to out
func NewUI(out io.Writer, verbose, quiet bool) *UI {
	return &UI{
		Out:     out,
		Verbose: verbose,
		Quiet:   quiet,
		now:     time.Now,
	}
}

// Printf prints formatted output if not in quiet mode
func (u *UI) Printf(format string, args ...interface{}) {
	if !u.Quiet {
		fmt.Fprintf(u.Out, format, args...)
	}
}

// VerbosePrintf prints only in verbose mode
func (u *UI) VerbosePrintf(format string, args ...interface{}) {
	if u.Verbose && !u.Quiet {
		fmt.Fprintf(u.Out, format, args...)
	}
}

func (u *UI) Info(message string) {
	u.Printf("%s %s\n", ColorInfo("INFO:"), message)
}

func (u *UI) Success(message string) {
	u.Printf("%s %s\n", ColorSuccess("✓"), message)
}

func (u *UI) Warning(message string) {
	u.Printf("%s %s\n", ColorWarning("⚠"), message)
}

// Section prints a header line
func (u *UI) Section(title string) {
	u.Printf("\n%s %s\n%s\n", ColorBold("▶"), ColorBold(title), strings.Repeat("─", 50))
}

// KeyValue prints an aligned key and value
func (u *UI) KeyValue(key, value string) {
	u.Printf("  %-24s %s\n", ColorDim(key+":"), value)
}

// StartProgress shows a spinner until StopProgress
func (u *UI) StartProgress(message string) {
	if u.Quiet {
		return
	}
	u.spinner = NewSpinner(u.Out, message)
	u.spinner.Start()
}

// StopProgress stops the spinner with a final status line
func (u *UI) StopProgress(success bool, message string) {
	if u.spinner == nil {
		return
	}
	u.spinner.Stop(success, message)
	u.spinner = nil
}

// ClusterPoller returns a poll observer that keeps the spinner text current
// while the cluster comes up
func (u *UI) ClusterPoller() cluster.PollFunc {
	started := u.now()
	return func(attempt int, d *cluster.Descriptor) {
		msg := PollMessage(attempt, d, u.now().Sub(started))
		if u.spinner != nil {
			u.spinner.UpdateMessage(msg)
			return
		}
		u.VerbosePrintf("%s\n", msg)
	}
}

// PollMessage describes one status check
func PollMessage(attempt int, d *cluster.Descriptor, elapsed time.Duration) string {
	id, status := "cluster", ""
	if d != nil {
		id, status = d.Identifier, d.Status
	}
	return fmt.Sprintf("Waiting for %s: %s (check %d, %s)",
		id, StatusColor(status), attempt, FormatDuration(elapsed.Round(time.Second)))
}

// Confirm asks a yes/no question
func Confirm(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, err
	}
	return confirmed, nil
}

// ConfirmIdentifier asks the user to type name back before a destructive
// action
func ConfirmIdentifier(message, name string) (bool, error) {
	var typed string
	prompt := &survey.Input{
		Message: fmt.Sprintf("%s Type %q to confirm:", message, name),
	}
	if err := survey.AskOne(prompt, &typed); err != nil {
		return false, err
	}
	return strings.TrimSpace(typed) == name, nil
}

// Password reads a secret without echoing it
func Password(message string) (string, error) {
	var secret string
	prompt := &survey.Password{Message: message}
	if err := survey.AskOne(prompt, &secret); err != nil {
		return "", err
	}
	return secret, nil
}
