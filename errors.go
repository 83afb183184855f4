package memtree

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned when New is given an unrecognized engine kind.
	ErrUnknownKind = errors.New("unknown engine kind")
)

// ErrArenaExhausted indicates that the zip engine's backing arena
// could not satisfy an allocation (memory budget or addressable space
// exhausted).
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrArenaExhausted struct {
	cause error
}

func (e *ErrArenaExhausted) Error() string {
	return fmt.Sprintf("arena exhausted: %v", e.cause)
}

func (e *ErrArenaExhausted) Unwrap() error { return e.cause }
