package storage

import "fmt"

// ReadError reports that the persisted document could not be read.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// StorageStage identifies the failing step to callers that map errors to responses.
func (e *ReadError) StorageStage() string { return "read" }

// ParseError reports that the persisted document is not a valid task collection.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) StorageStage() string { return "parse" }

// WriteError reports that the collection could not be persisted. The previous
// document is left in place.
type WriteError struct {
	Source string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Source, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) StorageStage() string { return "write" }
