package backend

import "fmt"

// The error taxonomy is closed: configuration errors, caller-contract
// violations, unsupported-capability calls, and underlying-engine failures.
// None of them is retryable; each carries the context needed to diagnose
// the failure (directories, symbol name, index, or engine error string).

// configError reports an unusable model artifact or load environment:
// no matching model file, ambiguous multiple matches, a missing native
// symbol.
type configError struct{ msg string }

func (e configError) Error() string { return "config: " + e.msg }

// ErrConfig constructs a configuration error.
func ErrConfig(format string, args ...any) error {
	return configError{msg: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	_, ok := err.(configError)
	return ok
}

// contractError reports an invalid call sequence or argument from the host
// application: dimension or shape mismatch, out-of-range index, access
// that requires a bound input.
type contractError struct{ msg string }

func (e contractError) Error() string { return "contract: " + e.msg }

// ErrContract constructs a caller-contract violation.
func ErrContract(format string, args ...any) error {
	return contractError{msg: fmt.Sprintf(format, args...)}
}

// IsContract reports whether err is a caller-contract violation.
func IsContract(err error) bool {
	_, ok := err.(contractError)
	return ok
}

// unsupportedError reports a capability the backend has no native
// equivalent for. It always names the capability and the backend so a
// failed call is identifiable; it is never a silent no-op.
type unsupportedError struct {
	capability string
	backend    string
}

func (e unsupportedError) Error() string {
	return e.capability + " is not supported by " + e.backend + " backend"
}

// ErrUnsupported constructs an unsupported-capability error.
func ErrUnsupported(capability, backendName string) error {
	return unsupportedError{capability: capability, backend: backendName}
}

// IsUnsupported reports whether err is an unsupported-capability error.
func IsUnsupported(err error) bool {
	_, ok := err.(unsupportedError)
	return ok
}

// engineError wraps a failure reported by the underlying engine, keeping
// the engine-provided error string.
type engineError struct {
	op  string
	msg string
}

func (e engineError) Error() string { return e.op + ": " + e.msg }

// ErrEngine constructs an underlying-engine failure for op.
func ErrEngine(op, engineMsg string) error {
	return engineError{op: op, msg: engineMsg}
}

// IsEngine reports whether err is an underlying-engine failure.
func IsEngine(err error) bool {
	_, ok := err.(engineError)
	return ok
}
