package errors

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ErrorHandler logs failures with their structured context and renders a
// user-facing summary. Construct one per process and pass it down; there is
// no global instance.
type ErrorHandler struct {
	log      logrus.FieldLogger
	out      io.Writer
	useColor bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(log logrus.FieldLogger, out io.Writer, useColor bool) *ErrorHandler {
	return &ErrorHandler{log: log, out: out, useColor: useColor}
}

// Handle logs the error and prints it for the operator
func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Wrap(err, ErrCodeInternal, err.Error())
	}

	fields := logrus.Fields{
		"code":     appErr.Code,
		"kind":     appErr.Kind(),
		"severity": appErr.Severity,
	}
	for k, v := range appErr.Context {
		fields[k] = v
	}
	entry := h.log.WithFields(fields)
	if appErr.Cause != nil {
		entry = entry.WithError(appErr.Cause)
	}
	if appErr.Severity == SeverityWarning {
		entry.Warn(appErr.Message)
	} else {
		entry.Error(appErr.Message)
	}

	h.display(appErr)
}

// display writes a user-friendly rendering of the error
func (h *ErrorHandler) display(err *AppError) {
	paint := color.New(color.FgRed, color.Bold)
	if err.Severity == SeverityWarning {
		paint = color.New(color.FgYellow, color.Bold)
	}
	if !h.useColor {
		paint.DisableColor()
	}

	fmt.Fprintf(h.out, "\n%s\n", paint.Sprintf("[%s] %s", err.Code, err.Message))
	if err.Cause != nil {
		fmt.Fprintf(h.out, "  caused by: %v\n", err.Cause)
	}

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(h.out, "\nContext:")
		for _, k := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", k, err.Context[k])
		}
	}

	if len(err.Suggestions) > 0 {
		fmt.Fprintln(h.out, "\nSuggestions:")
		for i, suggestion := range err.Suggestions {
			fmt.Fprintf(h.out, "  %d. %s\n", i+1, suggestion)
		}
	}
}
