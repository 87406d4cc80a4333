package objectfs

import "github.com/opteefs/secureobjfs-go/ree"

// rangeWrite gathers-scatters [pos, pos+length) across block
// boundaries into candidate, patching each touched block's existing
// content (treating an empty slot as all-zero) with either data
// (a normal write) or zero-fill (data == nil, used by
// truncate-extend). On any per-block failure candidate retains
// whatever blocks were already committed into it by earlier
// iterations, but the caller discards the whole candidate, so no
// partial range write is ever visible.
func (e *Engine) rangeWrite(fd ree.FileDescriptor, candidate *fileMeta, pos int64, data []byte, length int64) error {
	remaining := length
	cur := pos
	written := int64(0)

	for remaining > 0 {
		n := int(BlockOf(cur))
		off := cur % BlockSize
		chunk := remaining
		if max := BlockSize - off; chunk > max {
			chunk = max
		}

		existing, err := e.readBlock(fd, *candidate, n)
		if err != nil {
			return err
		}

		patch := make([]byte, BlockSize)
		copy(patch, existing)
		if data == nil {
			for i := off; i < off+chunk; i++ {
				patch[i] = 0
			}
		} else {
			copy(patch[off:off+chunk], data[written:written+chunk])
		}

		if err := e.writeBlock(fd, candidate, n, patch); err != nil {
			return err
		}

		cur += chunk
		remaining -= chunk
		written += chunk
	}

	if uint64(cur) > candidate.info.length {
		candidate.info.length = uint64(cur)
	}
	return nil
}

// rangeRead gathers [pos, pos+len(buf)) across block boundaries from
// meta into buf, returning the number of bytes copied. Callers are
// responsible for clamping the requested range to the file's length
// before calling this.
func (e *Engine) rangeRead(fd ree.FileDescriptor, m fileMeta, pos int64, buf []byte) (int, error) {
	remaining := int64(len(buf))
	cur := pos
	read := int64(0)

	for remaining > 0 {
		n := int(BlockOf(cur))
		off := cur % BlockSize
		chunk := remaining
		if max := BlockSize - off; chunk > max {
			chunk = max
		}

		block, err := e.readBlock(fd, m, n)
		if err != nil {
			return int(read), err
		}
		copy(buf[read:read+chunk], block[off:off+chunk])

		cur += chunk
		remaining -= chunk
		read += chunk
	}

	return int(read), nil
}
