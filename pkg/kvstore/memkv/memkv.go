// Package memkv is an in-memory kvstore.Store backend for tests and
// development, grounded on pkg/sorted/mem.go's role in the teacher (a
// memory-backed KeyValue "mostly useful for tests and development") but
// built on github.com/google/btree instead of the teacher's vendored
// leveldb-go memdb, since btree is the real, already-imported ordered
// container in the pack's dependency closure.
package memkv

import (
	"sync"

	"github.com/google/btree"

	"tiersolve.dev/pkg/kvstore"
)

func init() {
	kvstore.Register("mem", func(kvstore.Config) (kvstore.Store, error) {
		return New(), nil
	})
}

type item struct {
	key, value string
}

func (a item) Less(than btree.Item) bool {
	return a.key < than.(item).key
}

// Store is a naive in-memory kvstore.Store.
type Store struct {
	mu sync.Mutex
	t  *btree.BTree
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{t: btree.New(32)}
}

func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.t.Get(item{key: key})
	if it == nil {
		return "", kvstore.ErrNotFound
	}
	return it.(item).value, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.ReplaceOrInsert(item{key: key, value: value})
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.Delete(item{key: key})
	return nil
}

func (s *Store) BeginBatch() kvstore.BatchMutation { return kvstore.NewBatch() }

func (s *Store) CommitBatch(b kvstore.BatchMutation) error {
	batch, ok := b.(*kvstore.Batch)
	if !ok {
		return errBadBatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range batch.Ops() {
		if op.Delete {
			s.t.Delete(item{key: op.Key})
		} else {
			s.t.ReplaceOrInsert(item{key: op.Key, value: op.Value})
		}
	}
	return nil
}

var errBadBatch = &batchTypeError{}

type batchTypeError struct{}

func (*batchTypeError) Error() string { return "memkv: batch not created by this store" }

func (s *Store) Find(start string) kvstore.Iterator {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []item
	s.t.AscendGreaterOrEqual(item{key: start}, func(i btree.Item) bool {
		keys = append(keys, i.(item))
		return true
	})
	return &iter{items: keys, i: -1}
}

func (s *Store) Close() error { return nil }

type iter struct {
	items []item
	i     int
}

func (it *iter) Next() bool {
	it.i++
	return it.i < len(it.items)
}

func (it *iter) Key() string   { return it.items[it.i].key }
func (it *iter) Value() string { return it.items[it.i].value }
func (it *iter) Close() error  { return nil }
