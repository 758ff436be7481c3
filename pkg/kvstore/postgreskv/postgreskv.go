// Package postgreskv is a kvstore.Store backend on PostgreSQL, grounded on
// pkg/sorted/postgres/postgreskv.go's connection-string assembly and
// ?-to-$N placeholder rewrite, using the real github.com/lib/pq driver in
// place of the teacher's vendored copy.
package postgreskv

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	_ "github.com/lib/pq"

	"tiersolve.dev/pkg/kvstore"
	"tiersolve.dev/pkg/kvstore/sqlkv"
)

func init() {
	kvstore.Register("postgres", func(cfg kvstore.Config) (kvstore.Store, error) {
		return Open(cfg.Path)
	})
}

// Open opens a PostgreSQL database given a "postgres://" DSN or
// lib/pq-style conninfo string in path, provisioning the rows table if it
// does not exist.
func Open(conninfo string) (kvstore.Store, error) {
	db, err := sql.Open("postgres", conninfo)
	if err != nil {
		return nil, err
	}
	kv := &sqlkv.Store{DB: db, PlaceHolderFunc: replacePlaceHolders}
	if err := kv.CreateTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgreskv: create table: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

var placeHolderRx = regexp.MustCompile(`\?`)

// replacePlaceHolders rewrites sqlkv's ? placeholders into postgres's
// numbered $1, $2, ... form.
func replacePlaceHolders(sql string) string {
	n := 0
	return placeHolderRx.ReplaceAllStringFunc(sql, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}
