package objectfs

import (
	"encoding/binary"
	"fmt"

	"github.com/opteefs/secureobjfs-go/ree"
)

// createMeta builds and commits the initial meta for a brand-new
// object on fd: an all-blocks-active-at-slot-0 backup-version table,
// zero length, and a freshly generated FEK wrapped under the current
// session's UUID. It writes the meta to slot 0 and the raw counter 0
// directly — this bootstrap write bypasses the general commit
// sequence because there is no prior committed state a crash could
// corrupt, and after it, meta_counter == 0 on disk, matching the
// active-slot formula's slot-0 selection for counter 0.
func (e *Engine) createMeta(fd ree.FileDescriptor) (fileMeta, uint32, error) {
	numBlocks := e.keys.NumBlocksPerFile()
	table := make([]byte, bitmapBytes(numBlocks))
	for i := range table {
		table[i] = 0xFF
	}

	info := fileMetaInfo{
		length:             0,
		backupVersionTable: table,
		counter:            0,
	}

	uuid := e.session.CurrentSessionUUID()
	fek, err := e.keys.GenerateFEK(uuid)
	if err != nil {
		return fileMeta{}, 0, fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}

	plaintext := encodeMetaInfo(info, numBlocks)
	offset := e.layout.MetaOffset(0, true)
	if err := e.encryptAndWrite(fd, MetaFile, offset, plaintext, fek); err != nil {
		return fileMeta{}, 0, err
	}

	if err := writeRawCounter(fd, 0); err != nil {
		return fileMeta{}, 0, err
	}

	return fileMeta{info: info, fek: fek}, 0, nil
}

// openMeta reads the counter and active meta slot of an existing
// object on fd.
func (e *Engine) openMeta(fd ree.FileDescriptor) (fileMeta, uint32, error) {
	counter, err := readRawCounter(fd)
	if err != nil {
		return fileMeta{}, 0, err
	}

	offset := e.layout.MetaOffset(counter, true)
	plaintext, fek, empty, err := e.readAndDecrypt(fd, MetaFile, offset, int(e.layout.MetaInfoSize()), nil)
	if err != nil {
		return fileMeta{}, 0, err
	}
	if empty {
		return fileMeta{}, 0, fmt.Errorf("objectfs: %w: meta slot never written", ErrCorruptObject)
	}

	info, err := decodeMetaInfo(plaintext, e.keys.NumBlocksPerFile())
	if err != nil {
		return fileMeta{}, 0, err
	}

	return fileMeta{info: info, fek: fek}, counter, nil
}

// commitMeta is the two-phase commit of §4.3: seal candidate at the
// shadow meta offset relative to the handle's currently-committed
// counter, adopt it in memory on success, then write the 4-byte
// counter that linearizes the change. Any failure before the counter
// write leaves the on-disk state at the prior committed counter.
func (e *Engine) commitMeta(h *Handle, candidate fileMeta) error {
	candidate.info.counter = h.counter + 1

	offset := e.layout.MetaOffset(h.counter, false)
	plaintext := encodeMetaInfo(candidate.info, e.keys.NumBlocksPerFile())
	if err := e.encryptAndWrite(h.fd, MetaFile, offset, plaintext, candidate.fek); err != nil {
		return err
	}

	h.meta = candidate
	h.counter = candidate.info.counter

	if err := writeRawCounter(h.fd, h.counter); err != nil {
		return err
	}
	return nil
}

func writeRawCounter(fd ree.FileDescriptor, counter uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, counter)
	n, err := fd.WriteAt(buf, 0)
	if err != nil {
		return fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	if n != 4 {
		return fmt.Errorf("objectfs: %w: short counter write", ErrGeneric)
	}
	return nil
}

func readRawCounter(fd ree.FileDescriptor) (uint32, error) {
	buf := make([]byte, 4)
	n, err := fd.ReadAt(buf, 0)
	if err != nil {
		return 0, fmt.Errorf("objectfs: %w: %w", ErrGeneric, err)
	}
	if n != 4 {
		return 0, fmt.Errorf("objectfs: %w: counter read returned %d bytes, want 4", ErrCorruptObject, n)
	}
	return binary.LittleEndian.Uint32(buf), nil
}
