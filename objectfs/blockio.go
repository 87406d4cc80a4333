package objectfs

import (
	"errors"
	"fmt"

	"github.com/opteefs/secureobjfs-go/keymanager"
	"github.com/opteefs/secureobjfs-go/ree"
)

// encryptAndWrite seals plaintext under fek (kind-dependent header
// format) and writes the result to fd at offset. For MetaFile, a nil
// or empty fek asks the key manager to mint and embed a fresh one;
// the caller must read back the FEK actually used via a subsequent
// readAndDecrypt, or supply an already-known fek to reuse it (used by
// commit, which always already knows the FEK from the handle's
// current meta).
func (e *Engine) encryptAndWrite(fd ree.FileDescriptor, kind FileKind, offset int64, plaintext, fek []byte) error {
	ciphertext, err := e.keys.Encrypt(kind, plaintext, fek)
	if err != nil {
		e.log.Error().Err(err).Str("kind", kind.String()).Msg("objectfs: seal failed")
		return fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}

	n, err := fd.WriteAt(ciphertext, offset)
	if err != nil {
		e.log.Error().Err(err).Int64("offset", offset).Msg("objectfs: write failed")
		return fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	if n != len(ciphertext) {
		return fmt.Errorf("objectfs: %w: short write at offset %d", ErrGeneric, offset)
	}
	return nil
}

// readAndDecrypt reads headerSize(kind) + wantLen bytes from fd at
// offset. A zero-length read (slot never written) is reported via
// empty=true and no error — callers treat that as "slot empty," not
// a failure. A MAC failure surfaces as ErrCorruptObject.
func (e *Engine) readAndDecrypt(fd ree.FileDescriptor, kind FileKind, offset int64, wantLen int, fek []byte) (plaintext, outFEK []byte, empty bool, err error) {
	total := e.keys.HeaderSize(kind) + wantLen
	buf := make([]byte, total)

	n, err := fd.ReadAt(buf, offset)
	if err != nil {
		e.log.Error().Err(err).Int64("offset", offset).Msg("objectfs: read failed")
		return nil, nil, false, fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	if n == 0 {
		return nil, nil, true, nil
	}

	plaintext, outFEK, err = e.keys.Decrypt(kind, buf[:n], fek)
	if err != nil {
		e.log.Error().Err(err).Str("kind", kind.String()).Msg("objectfs: decrypt failed")
		if errors.Is(err, keymanager.ErrMACInvalid) {
			return nil, nil, false, fmt.Errorf("objectfs: %w", ErrCorruptObject)
		}
		return nil, nil, false, fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}

	return plaintext, outFEK, false, nil
}
