// Package sqlkv implements kvstore.Store on top of a database/sql *sql.DB,
// grounded directly on pkg/sorted/sqlkv/sqlkv.go — same rows(k,v) table
// shape, same REPLACE-INTO upsert, same query-string memoization, same
// Serial mutex for drivers (sqlite) that don't tolerate concurrent writers
// well. The sqlitekv, postgreskv and mysqlkv backends are thin
// driver-specific wrappers around this.
package sqlkv

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"tiersolve.dev/pkg/kvstore"
)

// Store is a kvstore.Store backed by an *sql.DB with a single "rows(k, v)"
// table.
type Store struct {
	DB *sql.DB

	// PlaceHolderFunc optionally rewrites ? placeholders for dialects
	// that don't use them (postgres uses $1, $2, ...).
	PlaceHolderFunc func(string) string

	// Serial forces single-flight access to DB, for drivers (sqlite) that
	// return "database is locked" under concurrent writers.
	Serial bool

	// TablePrefix optionally prefixes the table name, e.g. "dbname.".
	TablePrefix string

	mu sync.Mutex

	queriesInitOnce sync.Once
	replacer        *strings.Replacer
	queriesMu       sync.RWMutex
	queries         map[string]string
}

func (kv *Store) sql(stmt string) string {
	kv.queriesInitOnce.Do(func() {
		kv.queries = make(map[string]string, 8)
		kv.replacer = strings.NewReplacer("/*TPRE*/", kv.TablePrefix)
	})
	kv.queriesMu.RLock()
	q, ok := kv.queries[stmt]
	kv.queriesMu.RUnlock()
	if ok {
		return q
	}
	kv.queriesMu.Lock()
	defer kv.queriesMu.Unlock()
	if q, ok = kv.queries[stmt]; ok {
		return q
	}
	q = stmt
	if f := kv.PlaceHolderFunc; f != nil {
		q = f(q)
	}
	q = kv.replacer.Replace(q)
	kv.queries[stmt] = q
	return q
}

// CreateTable issues the table's CREATE TABLE IF NOT EXISTS statement, for
// callers that want the store to self-provision its schema.
func (kv *Store) CreateTable() error {
	_, err := kv.DB.Exec(kv.sql(`CREATE TABLE IF NOT EXISTS /*TPRE*/rows (k VARCHAR(255) NOT NULL PRIMARY KEY, v TEXT)`))
	return err
}

func (kv *Store) Get(key string) (string, error) {
	if kv.Serial {
		kv.mu.Lock()
		defer kv.mu.Unlock()
	}
	var value string
	err := kv.DB.QueryRow(kv.sql("SELECT v FROM /*TPRE*/rows WHERE k=?"), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", kvstore.ErrNotFound
	}
	return value, err
}

func (kv *Store) Set(key, value string) error {
	if kv.Serial {
		kv.mu.Lock()
		defer kv.mu.Unlock()
	}
	_, err := kv.DB.Exec(kv.sql("REPLACE INTO /*TPRE*/rows (k, v) VALUES (?, ?)"), key, value)
	return err
}

func (kv *Store) Delete(key string) error {
	if kv.Serial {
		kv.mu.Lock()
		defer kv.mu.Unlock()
	}
	_, err := kv.DB.Exec(kv.sql("DELETE FROM /*TPRE*/rows WHERE k=?"), key)
	return err
}

func (kv *Store) Close() error { return kv.DB.Close() }

type batchTx struct {
	tx  *sql.Tx
	err error
	kv  *Store
}

func (b *batchTx) Set(key, value string) {
	if b.err != nil {
		return
	}
	_, b.err = b.tx.Exec(b.kv.sql("REPLACE INTO /*TPRE*/rows (k, v) VALUES (?, ?)"), key, value)
}

func (b *batchTx) Delete(key string) {
	if b.err != nil {
		return
	}
	_, b.err = b.tx.Exec(b.kv.sql("DELETE FROM /*TPRE*/rows WHERE k=?"), key)
}

func (kv *Store) BeginBatch() kvstore.BatchMutation {
	if kv.Serial {
		kv.mu.Lock()
	}
	tx, err := kv.DB.Begin()
	return &batchTx{tx: tx, err: err, kv: kv}
}

func (kv *Store) CommitBatch(b kvstore.BatchMutation) error {
	if kv.Serial {
		defer kv.mu.Unlock()
	}
	bt, ok := b.(*batchTx)
	if !ok {
		return fmt.Errorf("sqlkv: wrong batch type %T", b)
	}
	if bt.err != nil {
		return bt.err
	}
	return bt.tx.Commit()
}

func (kv *Store) Find(start string) kvstore.Iterator {
	if kv.Serial {
		kv.mu.Lock()
		defer kv.mu.Unlock()
	}
	rows, err := kv.DB.Query(kv.sql("SELECT k, v FROM /*TPRE*/rows WHERE k >= ? ORDER BY k"), start)
	if err != nil {
		return &iter{err: err}
	}
	return &iter{rows: rows}
}

type iter struct {
	err        error
	rows       *sql.Rows
	key, val   sql.RawBytes
	skey, sval *string
}

func (t *iter) Key() string {
	if t.skey != nil {
		return *t.skey
	}
	s := string(t.key)
	t.skey = &s
	return s
}

func (t *iter) Value() string {
	if t.sval != nil {
		return *t.sval
	}
	s := string(t.val)
	t.sval = &s
	return s
}

func (t *iter) Next() bool {
	if t.err != nil || t.rows == nil {
		return false
	}
	t.skey, t.sval = nil, nil
	if !t.rows.Next() {
		return false
	}
	t.err = t.rows.Scan(&t.key, &t.val)
	return t.err == nil
}

func (t *iter) Close() error {
	if t.rows != nil {
		t.rows.Close()
	}
	return t.err
}
