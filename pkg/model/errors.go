package model

import "errors"

var (
	// ErrNotFound is returned when a document is not found
	ErrNotFound = errors.New("document not found")
	// ErrPreconditionFailed is returned when an operation is rejected because
	// its preconditions are not met
	ErrPreconditionFailed = errors.New("precondition failed")
)
