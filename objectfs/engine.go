package objectfs

import (
	"github.com/rs/zerolog"

	"github.com/opteefs/secureobjfs-go/keymanager"
	"github.com/opteefs/secureobjfs-go/ree"
)

// SessionAccessor supplies the UUID of the session currently open
// against the engine, used when generating a fresh FEK at create
// time. Satisfied by session.Accessor; declared locally to avoid an
// import cycle.
type SessionAccessor interface {
	CurrentSessionUUID() [16]byte
}

// FileOps is the abstract capability C6 exposes: the operation set an
// opaque handle supports. Per design note 1, directory operations are
// represented elsewhere (by the operation table) as "not supported,"
// never by a missing method on this interface.
type FileOps interface {
	Open(path string) (*Handle, error)
	Create(path string) (*Handle, error)
	Close(h *Handle) error
	Read(h *Handle, buf []byte) (int, error)
	Write(h *Handle, buf []byte) (int, error)
	Seek(h *Handle, offset int64, whence int) (int64, error)
	Truncate(h *Handle, newLen int64) error
	Rename(oldPath, newPath string, overwrite bool) error
	Remove(path string) error
	Fsync(h *Handle) error
}

// Whence values for Seek, mirroring io.Seeker's constants so callers
// familiar with the stdlib need to learn nothing new.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// Engine is the concrete FileOps implementation: the container
// format and atomic-commit protocol described by this package,
// orchestrating the injected key manager, transport and session
// collaborators. The key manager and session accessor are
// process-wide collaborators assumed reentrancy-safe across handles;
// the Engine itself takes no internal locks — callers serialize
// operations against a given Handle.
type Engine struct {
	keys    keymanager.KeyManager
	rpc     ree.Transport
	session SessionAccessor
	layout  Layout
	log     zerolog.Logger
}

var _ FileOps = (*Engine)(nil)

// New constructs an Engine. The block count is taken from
// keys.NumBlocksPerFile() and is baked into the on-disk layout, so
// every container this Engine touches must have been created with
// that same count.
func New(keys keymanager.KeyManager, rpc ree.Transport, session SessionAccessor, log zerolog.Logger) *Engine {
	layout := NewLayout(
		int64(keys.HeaderSize(MetaFile)),
		int64(keys.HeaderSize(BlockFile)),
		keys.NumBlocksPerFile(),
	)
	return &Engine{
		keys:    keys,
		rpc:     rpc,
		session: session,
		layout:  layout,
		log:     log,
	}
}

// MaxFileSize returns this engine's configured maximum object size.
func (e *Engine) MaxFileSize() int64 {
	return BlockSize * int64(e.keys.NumBlocksPerFile())
}

// MaxSeekPosition is the largest cursor position Seek will accept,
// resolving spec's open question in favor of a signed 64-bit offset
// validated against MaxFileSize rather than a native 32-bit position.
func (e *Engine) MaxSeekPosition() int64 { return e.MaxFileSize() }
