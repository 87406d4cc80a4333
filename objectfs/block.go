package objectfs

import "github.com/opteefs/secureobjfs-go/ree"

// readBlock returns the current content of logical block n under
// meta. A never-written slot is not an error: it yields an all-zero
// BlockSize buffer.
func (e *Engine) readBlock(fd ree.FileDescriptor, m fileMeta, n int) ([]byte, error) {
	offset := e.layout.BlockOffset(m, n, true)
	plaintext, _, empty, err := e.readAndDecrypt(fd, BlockFile, offset, BlockSize, m.fek)
	if err != nil {
		return nil, err
	}
	if empty {
		return make([]byte, BlockSize), nil
	}
	return plaintext, nil
}

// writeBlock seals data (exactly BlockSize bytes) into block n's
// shadow slot relative to candidate, and on success toggles
// candidate's backup-version bit for n so a later commit of candidate
// makes this write the active one. On failure candidate is left
// untouched.
func (e *Engine) writeBlock(fd ree.FileDescriptor, candidate *fileMeta, n int, data []byte) error {
	offset := e.layout.BlockOffset(*candidate, n, false)
	if err := e.encryptAndWrite(fd, BlockFile, offset, data, candidate.fek); err != nil {
		return err
	}
	candidate.info.backupVersionTable = toggleBitN(candidate.info.backupVersionTable, n)
	return nil
}
