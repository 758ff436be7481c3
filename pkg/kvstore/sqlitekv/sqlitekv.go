// Package sqlitekv is a kvstore.Store backend on a single SQLite file,
// grounded on pkg/sorted/sqlite/sqlitekv.go's "stat, init if missing, open,
// wrap in sqlkv.KeyValue with Serial set" shape. Where the teacher links
// the cgo mattn/go-sqlite3 driver, this backend uses modernc.org/sqlite,
// the pure-Go driver already a direct dependency of the pack, registered
// under database/sql as "sqlite".
package sqlitekv

import (
	"database/sql"
	"os"

	_ "modernc.org/sqlite"

	"tiersolve.dev/pkg/kvstore"
	"tiersolve.dev/pkg/kvstore/sqlkv"
)

func init() {
	kvstore.Register("sqlite", func(cfg kvstore.Config) (kvstore.Store, error) {
		return Open(cfg.Path)
	})
}

// Open opens (creating and provisioning the schema if necessary) a SQLite
// database at path.
func Open(path string) (kvstore.Store, error) {
	needsInit := false
	if fi, err := os.Stat(path); os.IsNotExist(err) || (err == nil && fi.Size() == 0) {
		needsInit = true
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	kv := &sqlkv.Store{DB: db, Serial: true}
	if needsInit {
		if err := kv.CreateTable(); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}
