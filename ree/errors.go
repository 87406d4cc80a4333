package ree

import "errors"

var (
	// ErrInvalidRoot indicates NewLocalTransport was called with an empty root.
	ErrInvalidRoot = errors.New("ree: root directory must not be empty")

	// ErrNotFound indicates the requested path does not exist.
	ErrNotFound = errors.New("ree: path not found")

	// ErrAlreadyExists indicates Rename was called without overwrite
	// and the destination path already exists.
	ErrAlreadyExists = errors.New("ree: destination already exists")

	// ErrIOFailure wraps an underlying I/O error from the backing store.
	ErrIOFailure = errors.New("ree: I/O failure")

	// ErrWriteBudgetExhausted indicates FaultInjectingTransport
	// dropped a write because its configured byte budget ran out.
	ErrWriteBudgetExhausted = errors.New("ree: injected fault: write budget exhausted")
)
