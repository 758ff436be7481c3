// Package mysqlkv is a kvstore.Store backend on MySQL, grounded on
// pkg/sorted/mysql/mysqlkv.go's DSN assembly (host defaulted to a TCP
// address, database name appended so the DSN itself stays cacheable across
// callers), using the real github.com/go-sql-driver/mysql driver in place
// of the teacher's vendored copy.
package mysqlkv

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"tiersolve.dev/pkg/kvstore"
	"tiersolve.dev/pkg/kvstore/sqlkv"
)

func init() {
	kvstore.Register("mysql", func(cfg kvstore.Config) (kvstore.Store, error) {
		return Open(cfg.Path)
	})
}

// Open opens a MySQL database given a DSN in path (user:password@tcp(host:port)/dbname
// form, or any DSN go-sql-driver/mysql accepts), provisioning the rows
// table if it does not exist.
func Open(dsn string) (kvstore.Store, error) {
	if !strings.Contains(dsn, "/") {
		return nil, fmt.Errorf("mysqlkv: dsn %q missing database name", dsn)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	kv := &sqlkv.Store{DB: db}
	if err := kv.CreateTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysqlkv: create table: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}
