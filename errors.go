package nebulite

import "errors"

// Code is a numeric command/document result code (spec.md §7). Negative
// values are critical; zero and positive values are non-critical.
type Code int

const (
	// Critical codes (< 0).
	CodeGeneral                Code = -1
	CodeCustomAssert           Code = -2
	CodeFunctionNotImplemented Code = -3
	CodeInvalidFile            Code = -4
	CodeArgParseError          Code = -5
	CodeInvalidFunctionCall    Code = -6

	// Non-critical codes (>= 0).
	CodeNone                  Code = 0
	CodeCustomError           Code = 1
	CodeTooManyArgs           Code = 2
	CodeTooFewArgs            Code = 3
	CodeUnknownArg            Code = 4
	CodeFeatureNotImplemented Code = 5
	CodeSnapshotFailed        Code = 6
	CodeFileNotFound          Code = 7
)

// Critical reports whether c is a critical error code (spec.md §7: command
// queue draining halts further processing of a queue on a critical code).
func (c Code) Critical() bool { return c < 0 }

// String renders a human-readable name for c, used in log lines.
func (c Code) String() string {
	switch c {
	case CodeGeneral:
		return "general"
	case CodeCustomAssert:
		return "custom-assert"
	case CodeFunctionNotImplemented:
		return "function-not-implemented"
	case CodeInvalidFile:
		return "invalid-file"
	case CodeArgParseError:
		return "argv-parse-error"
	case CodeInvalidFunctionCall:
		return "invalid-function-call"
	case CodeNone:
		return "none"
	case CodeCustomError:
		return "custom-error"
	case CodeTooManyArgs:
		return "too-many-args"
	case CodeTooFewArgs:
		return "too-few-args"
	case CodeUnknownArg:
		return "unknown-arg"
	case CodeFeatureNotImplemented:
		return "feature-not-implemented"
	case CodeSnapshotFailed:
		return "snapshot-failed"
	case CodeFileNotFound:
		return "file-not-found"
	default:
		return "unknown-code"
	}
}

// CommandError wraps a Code with the underlying cause for logging; ordinary
// callers can still compare against the sentinel errors below with
// errors.Is.
type CommandError struct {
	Code Code
	Err  error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return e.Code.String() + ": " + e.Err.Error()
	}
	return e.Code.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

var errInvalidJSON = errors.New("nebulite: invalid JSON")
