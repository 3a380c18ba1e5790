package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by point lookups when no record matches.
var ErrNotFound = errors.New("not found")

// WriteError wraps a constraint violation or storage fault on insert.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ReadError wraps a persistence fault on read.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("store read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
