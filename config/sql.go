// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/cockroach-go/v2/crdb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"

	// Register the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema creates the settings table. It is valid for every supported
// driver.
const Schema = `CREATE TABLE IF NOT EXISTS config (
	name  VARCHAR(64) NOT NULL PRIMARY KEY,
	value BIGINT NOT NULL
)`

// Supported driver names for OpenSQL.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	// DriverPQ is PostgreSQL through lib/pq.
	DriverPQ     = "postgres"
	DriverSQLite = "sqlite3"
	// DriverCockroach is CockroachDB, spoken to with lib/pq. Writes are
	// retried on serialization failures.
	DriverCockroach = "cockroach"
)

// mysqlNoSuchTable is ER_NO_SUCH_TABLE.
const mysqlNoSuchTable = 1146

// SQLStore reads settings from the "config" table of a SQL database.
type SQLStore struct {
	db      *sql.DB
	lookup  string
	upsert  string
	retryTx bool
}

var _ ReadWriteStore = (*SQLStore)(nil)

// OpenSQL opens the database at dsn with the given driver and wraps it in a
// SQLStore.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	sqlDriver := driver
	if driver == DriverCockroach {
		sqlDriver = DriverPQ
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		// Don't log the dsn, it could contain credentials.
		klog.Warningf("Could not open %s database, check config: %v", driver, err)
		return nil, err
	}
	return NewSQLStore(db, driver)
}

// NewSQLStore returns a SQLStore using db, which was opened with driver.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db}
	switch driver {
	case DriverMySQL:
		s.lookup = "SELECT value FROM config WHERE name = ?"
		s.upsert = "INSERT INTO config (name, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
	case DriverPostgres, DriverPQ, DriverCockroach:
		s.lookup = "SELECT value FROM config WHERE name = $1"
		s.upsert = "INSERT INTO config (name, value) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value"
		s.retryTx = driver == DriverCockroach
	case DriverSQLite:
		s.lookup = "SELECT value FROM config WHERE name = ?"
		s.upsert = "INSERT INTO config (name, value) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value"
	default:
		return nil, fmt.Errorf("config: unsupported SQL driver %q", driver)
	}
	return s, nil
}

// CreateSchema creates the settings table if it is missing.
func (s *SQLStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Lookup implements Store.
func (s *SQLStore) Lookup(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, s.lookup, name).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, ErrNotFound
	case isMissingTable(err):
		klog.Warningf("config: no config table, %q unset", name)
		return 0, ErrNotFound
	case err != nil:
		return 0, fmt.Errorf("config: lookup %q: %w", name, err)
	}
	return v, nil
}

// Set creates or replaces a setting.
func (s *SQLStore) Set(ctx context.Context, name string, value int64) error {
	var err error
	if s.retryTx {
		err = crdb.ExecuteTx(ctx, s.db, nil, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, s.upsert, name, value)
			return err
		})
	} else {
		_, err = s.db.ExecContext(ctx, s.upsert, name, value)
	}
	if err != nil {
		return fmt.Errorf("config: set %q: %w", name, err)
	}
	return nil
}

// isMissingTable reports whether err says that the config table does not
// exist, for each supported driver.
func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.UndefinedTable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UndefinedTable
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoSuchTable
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strings.Contains(liteErr.Error(), "no such table")
	}
	return false
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
