// Package errors wraps github.com/pkg/errors and adds a Fatal marker for
// contract violations: conditions that the core's hot paths treat as
// bugs in the caller rather than recoverable runtime errors (an
// oversized chunk, chunk-counter overflow, an allocation failure).
package errors

import "github.com/pkg/errors"

// New, Errorf, Wrap and Is are re-exported so callers need only import
// this package instead of reaching for both it and pkg/errors.
var (
	New    = errors.New
	Errorf = errors.Errorf
	Wrap   = errors.Wrap
	Is     = errors.Is
	As     = errors.As
)

type fatalError struct {
	error
}

// Fatal marks msg as a contract violation: a bug in the caller, not a
// recoverable runtime condition. jointable returns it like any other
// error; a driver that has no sensible recovery path of its own can
// check IsFatal and panic or exit instead of retrying.
func Fatal(msg string) error {
	return fatalError{errors.New(msg)}
}

// Fatalf is Fatal with fmt.Sprintf-style formatting.
func Fatalf(format string, args ...interface{}) error {
	return fatalError{errors.Errorf(format, args...)}
}

// IsFatal reports whether err (or one of the errors it wraps) was
// produced by Fatal or Fatalf.
func IsFatal(err error) bool {
	var fe fatalError
	return errors.As(err, &fe)
}

func (f fatalError) Unwrap() error { return f.error }
