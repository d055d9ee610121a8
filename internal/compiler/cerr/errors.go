// Package cerr defines the two error kinds the compiler pipeline works in:
// NoMatch, an internal control-flow signal used while a production probes
// alternatives, and InvalidInput, the only error kind that may ever reach a
// caller of the public Compile entry point.
package cerr

import (
	"errors"
	"fmt"
)

// NoMatch signals that a grammar production did not apply to the current
// input. It carries no position information because it is never shown to a
// caller — every exported entry point that can observe NoMatch escaping
// unhandled treats that as an internal bug, not a user-facing error.
var NoMatch = errors.New("cerr: no match")

// IsNoMatch reports whether err is (or wraps) NoMatch.
func IsNoMatch(err error) bool {
	return errors.Is(err, NoMatch)
}

// InvalidInput is a fatal parse error: the input committed to a production
// (a field name matched, a quote was opened, a range operator was consumed)
// and then failed to complete it. Message should read naturally on its own;
// Near and Offset exist to let callers render a caret under the failure.
type InvalidInput struct {
	Message string
	Near    string // the offending lexeme or a short slice of residual input
	Offset  int    // byte offset into the original input where the error starts
}

func (e *InvalidInput) Error() string {
	if e.Near == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (near %q, offset %d)", e.Message, e.Near, e.Offset)
}

// Invalid builds an *InvalidInput with a formatted message and no position.
// Callers that have position information should construct the struct
// directly or use InvalidAt.
func Invalid(format string, args ...any) error {
	return &InvalidInput{Message: fmt.Sprintf(format, args...)}
}

// InvalidAt builds an *InvalidInput anchored at a specific offset and
// near-text, for productions that already know where the input went wrong.
func InvalidAt(offset int, near, format string, args ...any) error {
	return &InvalidInput{
		Message: fmt.Sprintf(format, args...),
		Near:    near,
		Offset:  offset,
	}
}

// AsInvalidInput unwraps err into an *InvalidInput, if it is one.
func AsInvalidInput(err error) (*InvalidInput, bool) {
	var ii *InvalidInput
	ok := errors.As(err, &ii)
	return ii, ok
}
