package objectfs

// OperationTable is the Go-native shape of the original operation
// table: a struct of function fields built once over a FileOps
// implementation, so a caller that only wants the function-pointer
// style (e.g. to plug this engine behind a dispatch layer modeled on
// the original) never needs to see the Engine type itself. Every
// field is always populated — directory operations have no backing
// implementation here, so their fields hold a function that
// unconditionally returns ErrNotSupported, never a nil func value.
type OperationTable struct {
	Open     func(path string) (*Handle, error)
	Create   func(path string) (*Handle, error)
	Close    func(h *Handle) error
	Read     func(h *Handle, buf []byte) (int, error)
	Write    func(h *Handle, buf []byte) (int, error)
	Seek     func(h *Handle, offset int64, whence int) (int64, error)
	Truncate func(h *Handle, newLen int64) error
	Rename   func(oldPath, newPath string, overwrite bool) error
	Remove   func(path string) error
	Fsync    func(h *Handle) error

	OpenDir  func(path string) (interface{}, error)
	ReadDir  func(dir interface{}) (string, error)
	CloseDir func(dir interface{}) error
}

// NewOperationTable builds the table over engine. Directory operations
// are not part of this container format's scope; they are wired to a
// constant ErrNotSupported rather than omitted, so a caller iterating
// the table never has to special-case a nil field.
func NewOperationTable(engine FileOps) OperationTable {
	notSupportedOpenDir := func(path string) (interface{}, error) {
		return nil, ErrNotSupported
	}
	notSupportedReadDir := func(dir interface{}) (string, error) {
		return "", ErrNotSupported
	}
	notSupportedCloseDir := func(dir interface{}) error {
		return ErrNotSupported
	}

	return OperationTable{
		Open:     engine.Open,
		Create:   engine.Create,
		Close:    engine.Close,
		Read:     engine.Read,
		Write:    engine.Write,
		Seek:     engine.Seek,
		Truncate: engine.Truncate,
		Rename:   engine.Rename,
		Remove:   engine.Remove,
		Fsync:    engine.Fsync,

		OpenDir:  notSupportedOpenDir,
		ReadDir:  notSupportedReadDir,
		CloseDir: notSupportedCloseDir,
	}
}
