// Package fskv is a local-disk kvstore.Store backend, grounded on
// pkg/sorted/kvfile/kvfile.go's role in the teacher (a single-file sorted
// KeyValue store for small/local deployments) and on pkg/kvutil/kvutil.go's
// open-or-create convenience. The teacher's own kvfile.go imports a stale
// vendored path (camlistore.org/third_party/github.com/cznic/kv); this
// backend instead imports modernc.org/kv directly, the real maintained
// successor module already a direct dependency of the pack.
package fskv

import (
	"io"
	"os"

	"modernc.org/kv"

	"tiersolve.dev/pkg/kvstore"
)

func init() {
	kvstore.Register("fs", func(cfg kvstore.Config) (kvstore.Store, error) {
		return Open(cfg.Path)
	})
}

// Store is a kvstore.Store backed by a single modernc.org/kv file.
type Store struct {
	db *kv.DB
}

// Open opens the kv file at path, creating it (and any new empty database)
// if it does not exist, mirroring pkg/kvutil.Open's "os.Stat then Create or
// Open" pattern.
func Open(path string) (*Store, error) {
	opts := &kv.Options{}
	var db *kv.DB
	var err error
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		db, err = kv.Create(path, opts)
	} else {
		db, err = kv.Open(path, opts)
	}
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) (string, error) {
	v, err := s.db.Get(nil, []byte(key))
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", kvstore.ErrNotFound
	}
	return string(v), nil
}

func (s *Store) Set(key, value string) error {
	return s.db.Set([]byte(key), []byte(value))
}

func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key))
}

func (s *Store) BeginBatch() kvstore.BatchMutation { return kvstore.NewBatch() }

func (s *Store) CommitBatch(b kvstore.BatchMutation) error {
	batch, ok := b.(*kvstore.Batch)
	if !ok {
		return errBadBatch
	}
	if err := s.db.BeginTransaction(); err != nil {
		return err
	}
	for _, op := range batch.Ops() {
		var err error
		if op.Delete {
			err = s.db.Delete([]byte(op.Key))
		} else {
			err = s.db.Set([]byte(op.Key), []byte(op.Value))
		}
		if err != nil {
			s.db.Rollback()
			return err
		}
	}
	return s.db.Commit()
}

type batchTypeError struct{}

func (*batchTypeError) Error() string { return "fskv: batch not created by this store" }

var errBadBatch = &batchTypeError{}

func (s *Store) Find(start string) kvstore.Iterator {
	enum, _, err := s.db.Seek([]byte(start))
	if err != nil {
		return &iter{err: err}
	}
	return &iter{enum: enum}
}

func (s *Store) Close() error { return s.db.Close() }

type iter struct {
	enum       *kv.Enumerator
	key, value []byte
	err        error
	started    bool
}

func (it *iter) Next() bool {
	if it.err != nil || it.enum == nil {
		return false
	}
	k, v, err := it.enum.Next()
	if err != nil {
		if err != io.EOF {
			it.err = err
		}
		return false
	}
	it.key, it.value = k, v
	it.started = true
	return true
}

func (it *iter) Key() string   { return string(it.key) }
func (it *iter) Value() string { return string(it.value) }
func (it *iter) Close() error  { return it.err }
