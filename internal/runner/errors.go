package runner

import (
	"errors"
	"strings"
)

// Sentinel errors, one per failure kind. Match with errors.Is.
var (
	// ErrUnsupportedLanguage is returned before any resource is allocated.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrToolchainMissing means the compiler or interpreter was not found,
	// including after the alternate was tried.
	ErrToolchainMissing = errors.New("compiler or runtime not found")

	// ErrCompileFailure means the compiler exited non-zero or timed out.
	// The diagnostics are carried in Error.Detail.
	ErrCompileFailure = errors.New("compilation error")

	// ErrLaunchFailure means the run process could not be started.
	ErrLaunchFailure = errors.New("process launch failed")

	// ErrUnknownSession means the id never existed or was already finalized.
	ErrUnknownSession = errors.New("invalid session ID")

	// ErrProcessExited means a caller action raced with natural completion.
	ErrProcessExited = errors.New("process has already terminated")

	// ErrInternal wraps unexpected faults.
	ErrInternal = errors.New("internal failure")
)

// Error is a failure of a given kind with human-readable detail.
type Error struct {
	Kind   error  // one of the sentinel errors above
	Detail string // diagnostics, e.g. compiler stderr
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrUnsupportedLanguage, "unsupported_language"},
	{ErrToolchainMissing, "toolchain_missing"},
	{ErrCompileFailure, "compile_failure"},
	{ErrLaunchFailure, "launch_failure"},
	{ErrUnknownSession, "unknown_session"},
	{ErrProcessExited, "process_exited"},
	{ErrInternal, "internal"},
}

// KindOf returns a stable machine-readable name for err's kind.
// Errors outside the taxonomy report "internal".
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// DetailOf returns the Detail of the first *Error in err's chain.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
