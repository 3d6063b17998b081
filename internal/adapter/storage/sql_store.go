package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/rl1809/vending-ledger/internal/port"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

type dialect struct {
	name         string
	schema       string
	upsert       string
	insertIgnore string
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: `
		CREATE TABLE IF NOT EXISTS ledger_kv (
			k          VARCHAR(191)   NOT NULL PRIMARY KEY,
			v          VARBINARY(255) NOT NULL,
			version    BIGINT         NOT NULL,
			updated_at TIMESTAMP      NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	upsert: `
		INSERT INTO ledger_kv (k, v, version) VALUES (?, ?, 1)
		ON DUPLICATE KEY UPDATE v = VALUES(v), version = version + 1, updated_at = CURRENT_TIMESTAMP`,
	insertIgnore: `INSERT IGNORE INTO ledger_kv (k, v, version) VALUES (?, ?, 1)`,
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
		CREATE TABLE IF NOT EXISTS ledger_kv (
			k          TEXT      NOT NULL PRIMARY KEY,
			v          BLOB      NOT NULL,
			version    INTEGER   NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	upsert: `
		INSERT INTO ledger_kv (k, v, version) VALUES (?, ?, 1)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, version = version + 1, updated_at = CURRENT_TIMESTAMP`,
	insertIgnore: `INSERT OR IGNORE INTO ledger_kv (k, v, version) VALUES (?, ?, 1)`,
}

// SQLStore keeps ledger keys in a single table and updates them with a
// version column, the same optimistic locking the inventory table used.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func NewMySQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: mysqlDialect}
}

func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: sqliteDialect}
}

// OpenSQLite opens (creating if needed) a SQLite database file and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	s := NewSQLiteStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
	}
	return nil
}

// DB exposes the handle so audit tables can share the connection.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, _, ok, err := s.load(ctx, key)
	return v, ok, err
}

func (s *SQLStore) load(ctx context.Context, key string) ([]byte, int64, bool, error) {
	var (
		v       []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT v, version FROM ledger_kv WHERE k = ?`, key).Scan(&v, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("query ledger_kv: %w", err)
	}
	return v, version, true, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value); err != nil {
		return fmt.Errorf("upsert ledger_kv: %w", err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, key string, fn port.UpdateFunc) ([]byte, error) {
	for i := 0; i < maxUpdateRetry; i++ {
		next, err := s.tryUpdate(ctx, key, fn)
		if !errors.Is(err, ErrOptimisticLock) {
			return next, err
		}
		if err := backoff(ctx, i); err != nil {
			return nil, err
		}
	}
	return nil, port.ErrConflict
}

func (s *SQLStore) tryUpdate(ctx context.Context, key string, fn port.UpdateFunc) ([]byte, error) {
	cur, version, ok, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	next, err := fn(cur, ok)
	if err != nil {
		return nil, err
	}
	if next == nil {
		next = []byte{}
	}

	var result sql.Result
	if ok {
		result, err = s.db.ExecContext(ctx, `
			UPDATE ledger_kv
			SET v = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE k = ? AND version = ?`,
			next, key, version,
		)
	} else {
		result, err = s.db.ExecContext(ctx, s.dialect.insertIgnore, key, next)
	}
	if err != nil {
		return nil, fmt.Errorf("update ledger_kv: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrOptimisticLock
	}
	return next, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
