package analysis

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an analysis failure. It is diagnostic only: every kind
// moves the workflow to its error state the same way.
type Kind string

const (
	// KindService is a failure of the remote call itself (network, auth, quota).
	KindService Kind = "service"
	// KindEmptyResponse is a successful call without a parseable payload.
	KindEmptyResponse Kind = "empty_response"
	// KindSchemaViolation is a payload that does not describe a valid package.
	KindSchemaViolation Kind = "schema_violation"
)

// Error is returned by a Generator when no package could be produced.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the failure kind of err, or "" if err is not an analysis Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err is an analysis Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
