package patch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies hard-stop failures. Everything else in the engine is
// handled locally (skip, clamp, fallback) and surfaces as statuses or issues.
type ErrorKind int

const (
	// KindValidation - the input is not usable at all (empty content, text
	// with no recognizable diff structure). Nothing was mutated.
	KindValidation ErrorKind = iota

	// KindResolution - no existing target file could be resolved for the
	// patch. The engine never guesses or creates a file.
	KindResolution

	// KindSecurity - a configured hard cap was exceeded (file size, hunk
	// count, line length). The whole apply is aborted before any mutation.
	KindSecurity
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResolution:
		return "resolution"
	case KindSecurity:
		return "security"
	default:
		return "unknown"
	}
}

// ProcessError is a classified hard-stop error.
type ProcessError struct {
	Kind    ErrorKind
	Message string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationError creates a validation failure.
func ValidationError(msg string) *ProcessError {
	return &ProcessError{Kind: KindValidation, Message: msg}
}

// ValidationErrorf creates a formatted validation failure.
func ValidationErrorf(format string, args ...any) *ProcessError {
	return &ProcessError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ResolutionError creates a target-resolution failure.
func ResolutionError(msg string) *ProcessError {
	return &ProcessError{Kind: KindResolution, Message: msg}
}

// ResolutionErrorf creates a formatted target-resolution failure.
func ResolutionErrorf(format string, args ...any) *ProcessError {
	return &ProcessError{Kind: KindResolution, Message: fmt.Sprintf(format, args...)}
}

// SecurityError creates a security rejection.
func SecurityError(msg string) *ProcessError {
	return &ProcessError{Kind: KindSecurity, Message: msg}
}

// SecurityErrorf creates a formatted security rejection.
func SecurityErrorf(format string, args ...any) *ProcessError {
	return &ProcessError{Kind: KindSecurity, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a ProcessError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
