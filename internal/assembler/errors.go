package assembler

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable matches any input that is missing, not a PDF or corrupt.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrWriteFailed matches any destination that could not be written.
	ErrWriteFailed = errors.New("write failed")
	// ErrNoMatchingPages is not a failure: the range text matched nothing.
	ErrNoMatchingPages = errors.New("no matching pages")
	// ErrNoInputs is returned by Merge when called with an empty list.
	ErrNoInputs = errors.New("merge needs at least one input")
)

// SourceError reports an input that could not be opened as a PDF
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnreadable }

// WriteError reports a destination that could not be written
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }
