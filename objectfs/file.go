package objectfs

import (
	"errors"
	"fmt"

	"github.com/opteefs/secureobjfs-go/ree"
)

// Open opens an existing object at path. CORRUPT_OBJECT from the
// meta read is fatal to open: no handle is returned, matching the
// retry/fatal policy.
func (e *Engine) Open(path string) (*Handle, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	fd, err := e.rpc.Open(path, false)
	if err != nil {
		if errors.Is(err, ree.ErrNotFound) {
			return nil, fmt.Errorf("objectfs: %w", ErrItemNotFound)
		}
		return nil, fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}

	meta, counter, err := e.openMeta(fd)
	if err != nil {
		// The original asymmetry: a failed open of an existing file
		// never removes the REE object, only closes the descriptor.
		_ = fd.Close()
		return nil, err
	}

	return &Handle{
		path:      path,
		fd:        fd,
		cursor:    0,
		isNewFile: false,
		state:     stateOpen,
		meta:      meta,
		counter:   counter,
	}, nil
}

// Create creates a new object at path. On any failure after a
// successful create-open, the just-created REE object is removed —
// the asymmetric cleanup the original open_internal performs.
func (e *Engine) Create(path string) (*Handle, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	fd, err := e.rpc.Open(path, true)
	if err != nil {
		return nil, fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}

	meta, counter, err := e.createMeta(fd)
	if err != nil {
		_ = fd.Close()
		_ = e.rpc.Remove(path)
		return nil, err
	}

	return &Handle{
		path:      path,
		fd:        fd,
		cursor:    0,
		isNewFile: true,
		state:     stateOpen,
		meta:      meta,
		counter:   counter,
	}, nil
}

// Close releases h's transport descriptor. Calling Close on a nil
// handle is a no-op, matching "if non-null, close and free."
func (e *Engine) Close(h *Handle) error {
	if h == nil {
		return nil
	}
	if h.state != stateOpen {
		return fmt.Errorf("objectfs: %w", ErrClosed)
	}
	err := h.fd.Close()
	h.state = stateClosed
	if err != nil {
		return fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	return nil
}

// Read fills buf starting at h's cursor, clamped to the object's
// committed length, and advances the cursor by the bytes actually
// read. A MAC failure on a touched block surfaces as ErrCorruptObject
// without otherwise disturbing the handle: the object remains
// openable, but that block is unreadable.
func (e *Engine) Read(h *Handle, buf []byte) (int, error) {
	if h == nil || h.state != stateOpen {
		return 0, fmt.Errorf("objectfs: %w", ErrClosed)
	}

	effective := effectiveReadLen(h.cursor, int64(len(buf)), h.Length())
	if effective <= 0 {
		return 0, nil
	}

	n, err := e.rangeRead(h.fd, h.meta, h.cursor, buf[:effective])
	h.cursor += int64(n)
	return n, err
}

// effectiveReadLen computes how many bytes a read of wantLen bytes at
// pos against a file of length length actually yields: zero if pos is
// past length or pos+wantLen overflows, otherwise clamped to
// length-pos.
func effectiveReadLen(pos, wantLen, length int64) int64 {
	if pos > length {
		return 0
	}
	sum := pos + wantLen
	if sum < pos {
		return 0
	}
	if remaining := length - pos; wantLen > remaining {
		return remaining
	}
	return wantLen
}

// Write writes buf at h's cursor. If the cursor is past the current
// length, an internal truncate-extend to the cursor commits first (as
// its own linearization point), then the range write commits
// separately. A crash between the two commits exposes a file whose
// length equals the cursor with a zero-filled hole but no caller data
// yet, which spec accepts since there was no prior guarantee about
// post-seek content.
func (e *Engine) Write(h *Handle, buf []byte) (int, error) {
	if h == nil || h.state != stateOpen {
		return 0, fmt.Errorf("objectfs: %w", ErrClosed)
	}
	if len(buf) == 0 {
		return 0, nil
	}

	pos := h.cursor
	end := pos + int64(len(buf))
	if end < pos || end > e.MaxFileSize() {
		return 0, fmt.Errorf("objectfs: %w", ErrBadParameters)
	}

	if pos > h.Length() {
		if err := e.truncateInternal(h, pos); err != nil {
			return 0, err
		}
	}

	candidate := h.meta.clone()
	if err := e.rangeWrite(h.fd, &candidate, pos, buf, int64(len(buf))); err != nil {
		return 0, err
	}
	if err := e.commitMeta(h, candidate); err != nil {
		return 0, err
	}

	h.cursor = end
	return len(buf), nil
}

// Seek repositions h's cursor. Negative results clamp to 0; results
// beyond the engine's maximum position are rejected outright, not
// clamped — seeking past the current length is legal and creates no
// storage until a subsequent write.
func (e *Engine) Seek(h *Handle, offset int64, whence int) (int64, error) {
	if h == nil || h.state != stateOpen {
		return 0, fmt.Errorf("objectfs: %w", ErrClosed)
	}

	var newPos int64
	switch whence {
	case SeekSet:
		newPos = offset
	case SeekCur:
		newPos = h.cursor + offset
	case SeekEnd:
		newPos = h.Length() + offset
	default:
		return 0, fmt.Errorf("objectfs: %w", ErrBadParameters)
	}

	if newPos < 0 {
		newPos = 0
	}
	if newPos > e.MaxSeekPosition() {
		return 0, fmt.Errorf("objectfs: %w", ErrBadParameters)
	}

	h.cursor = newPos
	return newPos, nil
}

// Truncate resizes h to newLen. Shrinking never touches block
// storage — stale blocks beyond newLen remain in place but are safe
// because they are unreachable past length. Extending zero-fills the
// new region before committing.
func (e *Engine) Truncate(h *Handle, newLen int64) error {
	if h == nil || h.state != stateOpen {
		return fmt.Errorf("objectfs: %w", ErrClosed)
	}
	if newLen < 0 || newLen > e.MaxFileSize() {
		return fmt.Errorf("objectfs: %w", ErrBadParameters)
	}
	return e.truncateInternal(h, newLen)
}

func (e *Engine) truncateInternal(h *Handle, newLen int64) error {
	candidate := h.meta.clone()
	oldLen := int64(candidate.info.length)

	if newLen > oldLen {
		if err := e.rangeWrite(h.fd, &candidate, oldLen, nil, newLen-oldLen); err != nil {
			return err
		}
	} else {
		candidate.info.length = uint64(newLen)
	}

	return e.commitMeta(h, candidate)
}

// Rename passes through to the transport.
func (e *Engine) Rename(oldPath, newPath string, overwrite bool) error {
	if err := validatePath(oldPath); err != nil {
		return err
	}
	if err := validatePath(newPath); err != nil {
		return err
	}
	if err := e.rpc.Rename(oldPath, newPath, overwrite); err != nil {
		if errors.Is(err, ree.ErrNotFound) {
			return fmt.Errorf("objectfs: %w", ErrItemNotFound)
		}
		if errors.Is(err, ree.ErrAlreadyExists) {
			return fmt.Errorf("objectfs: %w", ErrBadParameters)
		}
		return fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	return nil
}

// Remove passes through to the transport.
func (e *Engine) Remove(path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if err := e.rpc.Remove(path); err != nil {
		if errors.Is(err, ree.ErrNotFound) {
			return fmt.Errorf("objectfs: %w", ErrItemNotFound)
		}
		return fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	return nil
}

// Fsync requires a live handle and passes through to the transport.
func (e *Engine) Fsync(h *Handle) error {
	if h == nil || h.state != stateOpen {
		return fmt.Errorf("objectfs: %w", ErrClosed)
	}
	if err := h.fd.Sync(); err != nil {
		return fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("objectfs: %w: empty path", ErrBadParameters)
	}
	if len(path)+1 > TEEFSNameMax {
		return fmt.Errorf("objectfs: %w: path too long", ErrBadParameters)
	}
	return nil
}
