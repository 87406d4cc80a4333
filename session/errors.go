package session

import "errors"

var (
	// ErrNilParam indicates a required parameter was nil or empty.
	ErrNilParam = errors.New("session: required parameter is missing")

	// ErrNotFound indicates no registry entry exists for the requested name.
	ErrNotFound = errors.New("session: identity not found")

	// ErrDuplicateIdentity indicates an identity with this name is already registered.
	ErrDuplicateIdentity = errors.New("session: identity already registered")

	// ErrInvalidUUID indicates a UUID of the wrong length was supplied.
	ErrInvalidUUID = errors.New("session: uuid must be 16 bytes")
)
