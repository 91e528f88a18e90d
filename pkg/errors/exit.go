package errors

import (
	"context"
	"errors"
)

// Process exit codes, one per failure class
const (
	ExitOK           = 0
	ExitInternal     = 1
	ExitConfig       = 2
	ExitProvisioning = 3
	ExitSchema       = 4
	ExitLoad         = 5
	ExitVerification = 6
	ExitCanceled     = 130
)

// ExitCode maps an error returned by a command to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) || HasCode(err, ErrCodeCanceled) {
		return ExitCanceled
	}

	switch KindOf(GetErrorCode(err)) {
	case KindConfiguration:
		return ExitConfig
	case KindProvisioning:
		return ExitProvisioning
	case KindSchema:
		return ExitSchema
	case KindLoad:
		return ExitLoad
	case KindVerification:
		return ExitVerification
	default:
		return ExitInternal
	}
}
