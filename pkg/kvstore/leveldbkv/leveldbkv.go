// Package leveldbkv is a kvstore.Store backend over a single mutable
// on-disk database, grounded directly on pkg/sorted/leveldb/leveldb.go —
// same db/batch/iterator shape, same bloom-filter and write-options
// choices — but importing the real github.com/syndtr/goleveldb module
// instead of the teacher's vendored third_party copy.
package leveldbkv

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"tiersolve.dev/pkg/kvstore"
)

func init() {
	kvstore.Register("leveldb", func(cfg kvstore.Config) (kvstore.Store, error) {
		return Open(cfg.Path)
	})
}

type kvis struct {
	path      string
	db        *leveldb.DB
	opts      *opt.Options
	readOpts  *opt.ReadOptions
	writeOpts *opt.WriteOptions
}

// Open opens (creating if necessary) a leveldb database at path.
func Open(path string) (kvstore.Store, error) {
	opts := &opt.Options{
		// 10 bits/key is leveldb's own default false-positive rate; a
		// tier-status cache is read far more often than written, so
		// the filter earns its memory back quickly.
		Filter: filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, err
	}
	return &kvis{
		path:      path,
		db:        db,
		opts:      opts,
		readOpts:  &opt.ReadOptions{},
		writeOpts: &opt.WriteOptions{Sync: false},
	}, nil
}

func (is *kvis) Get(key string) (string, error) {
	val, err := is.db.Get([]byte(key), is.readOpts)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return "", kvstore.ErrNotFound
		}
		return "", err
	}
	return string(val), nil
}

func (is *kvis) Set(key, value string) error {
	return is.db.Put([]byte(key), []byte(value), is.writeOpts)
}

func (is *kvis) Delete(key string) error {
	return is.db.Delete([]byte(key), is.writeOpts)
}

func (is *kvis) Find(start string) kvstore.Iterator {
	var startB []byte
	if start != "" {
		startB = []byte(start)
	}
	return &iter{it: is.db.NewIterator(&util.Range{Start: startB}, is.readOpts)}
}

func (is *kvis) BeginBatch() kvstore.BatchMutation {
	return &lvbatch{batch: new(leveldb.Batch)}
}

type lvbatch struct {
	mu    sync.Mutex
	batch *leveldb.Batch
}

func (lvb *lvbatch) Set(key, value string) {
	lvb.mu.Lock()
	defer lvb.mu.Unlock()
	lvb.batch.Put([]byte(key), []byte(value))
}

func (lvb *lvbatch) Delete(key string) {
	lvb.mu.Lock()
	defer lvb.mu.Unlock()
	lvb.batch.Delete([]byte(key))
}

func (is *kvis) CommitBatch(bm kvstore.BatchMutation) error {
	b, ok := bm.(*lvbatch)
	if !ok {
		return errBadBatch
	}
	return is.db.Write(b.batch, is.writeOpts)
}

type batchTypeError struct{}

func (*batchTypeError) Error() string { return "leveldbkv: batch not created by this store" }

var errBadBatch = &batchTypeError{}

func (is *kvis) Close() error { return is.db.Close() }

type iter struct {
	it         iterator.Iterator
	key, val   []byte
	skey, sval *string
}

func (it *iter) Close() error {
	it.it.Release()
	return it.it.Error()
}

func (it *iter) Key() string {
	if it.skey != nil {
		return *it.skey
	}
	s := string(it.it.Key())
	it.skey = &s
	return s
}

func (it *iter) Value() string {
	if it.sval != nil {
		return *it.sval
	}
	s := string(it.it.Value())
	it.sval = &s
	return s
}

func (it *iter) Next() bool {
	it.skey, it.sval = nil, nil
	return it.it.Next()
}
