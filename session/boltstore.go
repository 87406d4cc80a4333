package session

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketIdentities = []byte("identities")

// BoltSessionStore persists a name -> UUID registry in a bbolt
// database, for test harnesses and multi-identity deployments that
// need to resolve several named sessions to their UUIDs across
// process restarts.
type BoltSessionStore struct {
	db *bbolt.DB
}

// OpenBoltSessionStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltSessionStore(dbPath string) (*BoltSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("session: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("session: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdentities)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: create bucket: %w", err)
	}

	return &BoltSessionStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltSessionStore) Close() error { return s.db.Close() }

// Register adds a new name -> uuid mapping. Returns
// ErrDuplicateIdentity if name is already registered.
func (s *BoltSessionStore) Register(name string, uuid [16]byte) error {
	if name == "" {
		return fmt.Errorf("%w: name", ErrNilParam)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdentities)
		if b.Get([]byte(name)) != nil {
			return ErrDuplicateIdentity
		}
		return b.Put([]byte(name), uuid[:])
	})
}

// UUIDFor looks up the UUID registered under name.
func (s *BoltSessionStore) UUIDFor(name string) ([16]byte, error) {
	var uuid [16]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIdentities).Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		if len(data) != 16 {
			return ErrInvalidUUID
		}
		copy(uuid[:], data)
		return nil
	})
	return uuid, err
}

// Accessor returns an Accessor bound to name, or ErrNotFound if name
// is not registered. The returned Accessor re-resolves name on every
// call to CurrentSessionUUID and reports the zero UUID if that lookup
// fails.
func (s *BoltSessionStore) Accessor(name string) (Accessor, error) {
	if _, err := s.UUIDFor(name); err != nil {
		return nil, err
	}
	return &boltAccessor{store: s, name: name}, nil
}

type boltAccessor struct {
	store *BoltSessionStore
	name  string
}

func (a *boltAccessor) CurrentSessionUUID() [16]byte {
	uuid, err := a.store.UUIDFor(a.name)
	if err != nil {
		// Accessor's interface contract has no error return; a name
		// that resolved in Accessor() but vanishes before use means
		// the registry was mutated concurrently, which this module's
		// non-goals exclude.
		return [16]byte{}
	}
	return uuid
}
