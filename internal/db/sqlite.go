// Package db opens the SQLite control-plane store that holds dataset,
// macro, API-key, and query-log records, and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

type poolMode int

const (
	poolWrite poolMode = iota
	poolRead
)

// defaultReadConns is the read-pool size used when the caller passes 0.
const defaultReadConns = 4

// OpenSQLitePair opens a serialized write pool (one connection, immediate
// transactions) and a wider read pool over the same SQLite file. SQLite
// allows many readers but a single writer; splitting the pools keeps dataset
// mutations from starving API-key lookups on the request path.
//
// readConns sizes the read pool; 0 means defaultReadConns.
func OpenSQLitePair(path string, readConns int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = openPool(path, poolWrite, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("open control-plane write pool: %w", err)
	}

	if readConns <= 0 {
		readConns = defaultReadConns
	}
	readDB, err = openPool(path, poolRead, readConns)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, fmt.Errorf("open control-plane read pool: %w", err)
	}

	return writeDB, readDB, nil
}

func openPool(path string, mode poolMode, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite3", sqliteDSN(path, mode))
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(maxConns)
	pool.SetMaxIdleConns(maxConns)
	pool.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return pool, nil
}

// sqliteDSN appends the hardened connection parameters: WAL journaling so
// readers never block on the writer, a busy timeout instead of immediate
// SQLITE_BUSY failures, and foreign keys on. The write pool additionally
// takes its lock at BEGIN so lock upgrades cannot deadlock mid-transaction.
func sqliteDSN(path string, mode poolMode) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	if mode == poolWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
