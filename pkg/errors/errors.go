package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Provisioning errors (1xxx)
	ErrCodeClusterAlreadyExists ErrorCode = "DWH1001"
	ErrCodeClusterNotFound      ErrorCode = "DWH1002"
	ErrCodeProvisionFailed      ErrorCode = "DWH1003"
	ErrCodeProvisionTimeout     ErrorCode = "DWH1004"
	ErrCodeClusterFailed        ErrorCode = "DWH1005"
	ErrCodeDeleteFailed         ErrorCode = "DWH1006"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound    ErrorCode = "DWH2001"
	ErrCodeConfigMissing     ErrorCode = "DWH2002"
	ErrCodeConfigInvalid     ErrorCode = "DWH2003"
	ErrCodeSecretUnavailable ErrorCode = "DWH2004"

	// Warehouse connection errors (3xxx)
	ErrCodeConnectionFailed ErrorCode = "DWH3001"

	// SQL execution errors (4xxx)
	ErrCodeSchemaFailed    ErrorCode = "DWH4001"
	ErrCodeCopyFailed      ErrorCode = "DWH4002"
	ErrCodeTransformFailed ErrorCode = "DWH4003"
	ErrCodeCountFailed     ErrorCode = "DWH4004"

	// Verification (6xxx)
	ErrCodeVerificationMismatch ErrorCode = "DWH6001"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "DWH9001"
	ErrCodeMaxRetriesExceeded ErrorCode = "DWH9002"
	ErrCodeCanceled           ErrorCode = "DWH9003"
)

// Kind groups error codes into the failure classes the CLI reports on.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindProvisioning  Kind = "provisioning"
	KindSchema        Kind = "schema"
	KindLoad          Kind = "load"
	KindVerification  Kind = "verification"
	KindInternal      Kind = "internal"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run aborted
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Run completed with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError carrying the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Kind returns the failure class of the error code
func (e *AppError) Kind() Kind {
	return KindOf(e.Code)
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context from a wrapped AppError
	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// Common error constructors

// ConfigError creates a configuration error for a single key
func ConfigError(message string, key string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("key", key).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", key),
			"Compare your config file against dwh.cfg.example",
		)
}

// MissingConfigError reports every required key that is absent
func MissingConfigError(keys []string) *AppError {
	return New(ErrCodeConfigMissing, fmt.Sprintf("Missing required configuration: %s", strings.Join(keys, ", "))).
		WithContext("keys", keys).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Add the keys to the config file or export them as DWH_<SECTION>_<KEY>",
		)
}

// ProvisioningError wraps a cluster provider failure
func ProvisioningError(code ErrorCode, message string, cause error) *AppError {
	var err *AppError
	if cause == nil {
		err = New(code, message)
	} else {
		err = Wrap(cause, code, message)
	}
	return err.WithSeverity(SeverityCritical)
}

// SQLError creates an SQL execution error for the schema or load steps
func SQLError(code ErrorCode, message string, query string, cause error) *AppError {
	err := Wrap(cause, code, message).
		WithContext("query", truncateString(strings.TrimSpace(query), 200))

	lower := strings.ToLower(fmt.Sprint(cause))
	switch {
	case strings.Contains(lower, "permission denied") || strings.Contains(lower, "access denied"):
		_ = err.WithSuggestions(
			"Check the database user's privileges",
			"Verify the IAM role attached to the cluster can read the S3 prefixes",
		)
	case strings.Contains(lower, "stl_load_errors"):
		_ = err.WithSuggestions(
			"Inspect stl_load_errors on the cluster for rejected records",
			"Verify the JSON path file matches the event log layout",
		)
	case strings.Contains(lower, "does not exist"):
		_ = err.WithSuggestions(
			"Run the schema reset before loading",
		)
	}

	return err
}

// VerificationError reports counts that differ from the expected mapping
func VerificationError(mismatched []string) *AppError {
	return New(ErrCodeVerificationMismatch, fmt.Sprintf("Row counts differ from expected for: %s", strings.Join(mismatched, ", "))).
		WithContext("tables", mismatched).
		WithSeverity(SeverityWarning)
}

// KindOf maps an error code to its failure class
func KindOf(code ErrorCode) Kind {
	switch code {
	case ErrCodeConfigNotFound, ErrCodeConfigMissing, ErrCodeConfigInvalid, ErrCodeSecretUnavailable:
		return KindConfiguration
	case ErrCodeClusterAlreadyExists, ErrCodeClusterNotFound, ErrCodeProvisionFailed,
		ErrCodeProvisionTimeout, ErrCodeClusterFailed, ErrCodeDeleteFailed, ErrCodeConnectionFailed:
		return KindProvisioning
	case ErrCodeSchemaFailed:
		return KindSchema
	case ErrCodeCopyFailed, ErrCodeTransformFailed, ErrCodeCountFailed:
		return KindLoad
	case ErrCodeVerificationMismatch:
		return KindVerification
	default:
		return KindInternal
	}
}

// HasCode reports whether any AppError in the chain carries code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
