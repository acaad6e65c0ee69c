package extract

import (
	"errors"
	"fmt"
)

// Kind classifies why an extraction produced no value
type Kind string

const (
	// KindInvalidInput means an argument was rejected before any work was done
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound means a valid query matched nothing
	KindNotFound Kind = "not_found"
)

var (
	// ErrInvalidInput is matched by errors.Is for KindInvalidInput failures
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is matched by errors.Is for KindNotFound failures
	ErrNotFound = errors.New("not found")
)

// Error is returned by every extraction rule that cannot produce a value.
// The rule still returns its empty result alongside it.
type Error struct {
	Op     string // rule name, e.g. "link_by_id"
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

// Is reports whether target is the sentinel for this error's kind
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInvalidInput:
		return target == ErrInvalidInput
	case KindNotFound:
		return target == ErrNotFound
	}
	return false
}

func invalidInput(op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindInvalidInput, Detail: fmt.Sprintf(format, args...)}
}

func notFound(op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}
