// Package objectfs implements the secure, crash-atomic, double-
// buffered persistent-object container format: the on-disk layout,
// the counter-gated commit protocol, and the encrypted block I/O
// paths built on top of the injected key manager, transport and
// session collaborators.
package objectfs

import (
	"github.com/opteefs/secureobjfs-go/keymanager"
	"github.com/opteefs/secureobjfs-go/ree"
)

// BlockSize is the fixed logical block size in bytes.
const BlockSize = 256

// blockShift is log2(BlockSize), used by BlockOf.
const blockShift = 8

// TEEFSNameMax bounds the length of a path passed to Open/Create,
// including the terminating NUL the original C API reserves.
const TEEFSNameMax = 255

// StorageTypeUser returns the public storage-type identifier for this
// engine's objects. When rpmb is true (the transport class is
// RPMB-backed) the identifier's high byte shifts by one, reproducing
// tee_api_defines.h's TEE_STORAGE_USER / CONFIG_OPTEE_RPMB_FS split
// exactly (0x80000000 vs 0x80000100).
func StorageTypeUser(rpmb bool) uint32 {
	const base uint32 = 0x80000000
	if rpmb {
		return base | 0x00000100
	}
	return base
}

// fileMetaInfo is the plaintext structure sealed inside every meta
// slot's ciphertext body. Counter is a redundant in-band copy of the
// on-disk meta_counter at the time this meta was committed, carried
// for ABI fidelity with the original container format; this
// implementation does not cross-validate it against the offset-0
// counter (see design notes on the write path not re-reading its own
// commit).
type fileMetaInfo struct {
	length             uint64
	backupVersionTable []byte
	counter            uint32
}

// fileMeta is the in-memory, fully-resolved meta: the plaintext info
// plus the FEK unwrapped for use by the block engine. It is always
// treated by copy when building a commit candidate.
type fileMeta struct {
	info fileMetaInfo
	fek  []byte
}

func (m fileMeta) clone() fileMeta {
	table := make([]byte, len(m.info.backupVersionTable))
	copy(table, m.info.backupVersionTable)
	fek := make([]byte, len(m.fek))
	copy(fek, m.fek)
	return fileMeta{
		info: fileMetaInfo{
			length:             m.info.length,
			backupVersionTable: table,
			counter:            m.info.counter,
		},
		fek: fek,
	}
}

// handleState models the fresh -> open -> closed lifecycle of §4.6.
type handleState int

const (
	stateFresh handleState = iota
	stateOpen
	stateClosed
)

// Handle is the opaque per-object handle returned by Open/Create. It
// owns a meta snapshot, the committed counter, a cursor, the
// is-new-file indicator, and the transport file descriptor; it carries
// no open flags. Callers must serialize every operation against a
// given Handle.
type Handle struct {
	path   string
	fd     ree.FileDescriptor
	cursor int64
	// isNewFile mirrors spec.md §3's "handle owns ... an is-new-file
	// indicator." The create-failure cleanup it describes is decided
	// structurally in file.go by which of Create/Open is being
	// unwound, not by reading this field back off a live handle; it is
	// carried here for the handle's struct fidelity and for callers
	// that want to know how a handle was obtained.
	isNewFile bool
	state     handleState

	meta    fileMeta
	counter uint32
}

// Position reports the handle's current cursor.
func (h *Handle) Position() int64 { return h.cursor }

// Length reports the handle's current committed logical length.
func (h *Handle) Length() int64 { return int64(h.meta.info.length) }

// FileKind re-exports keymanager.FileKind so callers of this package
// never need to import keymanager directly for type assertions.
type FileKind = keymanager.FileKind

const (
	MetaFile  = keymanager.MetaFile
	BlockFile = keymanager.BlockFile
)
