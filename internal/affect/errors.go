package affect

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Every error returned by this package matches
// exactly one of them.
var (
	ErrInvalidEvent  = errors.New("invalid event")
	ErrInvalidConfig = errors.New("invalid config")
	ErrInvalidWindow = errors.New("invalid window")
	ErrEmptyHistory  = errors.New("empty history")
)

// Error carries the failing operation and, for event errors, the offending
// position in the input slice.
type Error struct {
	Kind    error
	Op      string
	Index   int // -1 when not tied to a single event
	Message string
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %v at index %d: %s", e.Op, e.Kind, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Message)
}

// Is lets errors.Is match the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func eventError(op string, index int, msg string) error {
	return &Error{Kind: ErrInvalidEvent, Op: op, Index: index, Message: msg}
}

func configError(op, msg string) error {
	return &Error{Kind: ErrInvalidConfig, Op: op, Index: -1, Message: msg}
}

func windowError(op, msg string) error {
	return &Error{Kind: ErrInvalidWindow, Op: op, Index: -1, Message: msg}
}
