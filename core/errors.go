package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrIO               = errors.New("core: digital io failure")
	ErrIllegalDirection = errors.New("core: direction not legal for axis")
	ErrUnknownAxis      = errors.New("core: axis not configured")
	ErrHomingTimeout    = errors.New("core: homing reference switch never asserted")
	ErrNoReference      = errors.New("core: axis has no reference limit switch")
	ErrInvalidConfig    = errors.New("core: invalid configuration")
)

// IOError reports a failed read or write on a named line.
// Any IOError is fatal: the true state of a motor output is unknown after it.
type IOError struct {
	Op   string // "read" or "write"
	Line LineID
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("core: %s %s: %v", e.Op, e.Line, e.Err)
}

// Unwrap exposes both ErrIO and the boundary's own error to errors.Is/As
func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

func readErr(line LineID, err error) error {
	return &IOError{Op: "read", Line: line, Err: err}
}

func writeErr(line LineID, err error) error {
	return &IOError{Op: "write", Line: line, Err: err}
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
