// Package kvstore defines a sorted, enumerable key/value interface and a
// constructor registry, grounded directly on the teacher's pkg/sorted
// package. It backs the tier-status cache (§3.1), with several
// interchangeable backends (§4.I) instead of one
// hardcoded store, the way the teacher lets any blobserver storage type sit
// behind pkg/sorted.KeyValue.
package kvstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the store does not contain the key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a sorted, enumerable key-value interface supporting batch
// mutations, mirroring pkg/sorted.KeyValue.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)

	Set(key, value string) error
	Delete(key string) error

	BeginBatch() BatchMutation
	CommitBatch(b BatchMutation) error

	// Find returns an iterator positioned before the first key/value pair
	// whose key is >= start. Any error encountered is returned from
	// Iterator.Close.
	Find(start string) Iterator

	// Close shuts the store down. Implementations must not lose data
	// already Set/Delete'd or CommitBatch'd, though.
	Close() error
}

// Iterator iterates a Store's key/value pairs in key order.
type Iterator interface {
	Next() bool
	Key() string
	Value() string
	Close() error
}

// BatchMutation accumulates Set/Delete operations for one CommitBatch call.
type BatchMutation interface {
	Set(key, value string)
	Delete(key string)
}

type mutation struct {
	key, value string
	del        bool
}

// Batch is a reusable, in-memory BatchMutation implementation backends can
// embed or replay from.
type Batch struct {
	ops []mutation
}

func NewBatch() *Batch { return &Batch{} }

func (b *Batch) Set(key, value string) { b.ops = append(b.ops, mutation{key: key, value: value}) }
func (b *Batch) Delete(key string)     { b.ops = append(b.ops, mutation{key: key, del: true}) }

// Ops exposes the accumulated mutations in order, for backends that apply a
// batch as a sequence of operations rather than a native transaction type.
func (b *Batch) Ops() []struct {
	Key, Value string
	Delete     bool
} {
	out := make([]struct {
		Key, Value string
		Delete     bool
	}, len(b.ops))
	for i, m := range b.ops {
		out[i] = struct {
			Key, Value string
			Delete     bool
		}{Key: m.key, Value: m.value, Delete: m.del}
	}
	return out
}

// Config is the subset of backend configuration every constructor accepts;
// backends interpret Path as a file, DSN, or connection string as
// appropriate.
type Config struct {
	Path string
}

// Constructor builds a Store from a Config.
type Constructor func(Config) (Store, error)

var ctors = map[string]Constructor{}

// Register adds a named backend constructor, panicking on duplicate
// registration the way pkg/sorted.RegisterKeyValue does — a programming
// error, not a runtime one.
func Register(name string, ctor Constructor) {
	if name == "" || ctor == nil {
		panic("kvstore: empty name or nil constructor")
	}
	if _, dup := ctors[name]; dup {
		panic("kvstore: duplicate registration of " + name)
	}
	ctors[name] = ctor
}

// Open opens the named backend with cfg.
func Open(name string, cfg Config) (Store, error) {
	ctor, ok := ctors[name]
	if !ok {
		return nil, fmt.Errorf("kvstore: unknown backend %q", name)
	}
	return ctor(cfg)
}
