package keymanager

import "errors"

var (
	// ErrEmptyRootSecret indicates New was called with no root secret.
	ErrEmptyRootSecret = errors.New("keymanager: root secret is empty")

	// ErrNilSessionAccessor indicates New was called with a nil session accessor.
	ErrNilSessionAccessor = errors.New("keymanager: session accessor is nil")

	// ErrInvalidBlockCount indicates New was called with a non-positive block count.
	ErrInvalidBlockCount = errors.New("keymanager: num blocks per file must be positive")

	// ErrInvalidFileKind indicates an unrecognized FileKind was passed to Encrypt or Decrypt.
	ErrInvalidFileKind = errors.New("keymanager: invalid file kind")

	// ErrInvalidFEK indicates a FEK of the wrong length was supplied.
	ErrInvalidFEK = errors.New("keymanager: invalid fek length")

	// ErrHKDFFailure indicates HKDF-SHA256 wrap-key derivation failed.
	ErrHKDFFailure = errors.New("keymanager: HKDF key derivation failed")

	// ErrMACInvalid indicates AES-GCM authentication failed during
	// Decrypt — the ciphertext was tampered with, truncated, or
	// sealed under a different key.
	ErrMACInvalid = errors.New("keymanager: MAC verification failed")
)
