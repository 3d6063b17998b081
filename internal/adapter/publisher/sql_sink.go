package publisher

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

const (
	mysqlAuditSchema = `
		CREATE TABLE IF NOT EXISTS ledger_audit (
			id         CHAR(36)     NOT NULL PRIMARY KEY,
			action     VARCHAR(32)  NOT NULL,
			sender     VARCHAR(191) NOT NULL,
			payload    JSON         NOT NULL,
			created_at TIMESTAMP(6) NOT NULL
		)`
	sqliteAuditSchema = `
		CREATE TABLE IF NOT EXISTS ledger_audit (
			id         TEXT      NOT NULL PRIMARY KEY,
			action     TEXT      NOT NULL,
			sender     TEXT      NOT NULL,
			payload    TEXT      NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`
)

// SQLSink appends audit records to the ledger_audit table.
type SQLSink struct {
	db     *sql.DB
	name   string
	schema string
}

func NewMySQLSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db, name: "mysql", schema: mysqlAuditSchema}
}

func NewSQLiteSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db, name: "sqlite", schema: sqliteAuditSchema}
}

func (s *SQLSink) Name() string { return s.name }

func (s *SQLSink) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema); err != nil {
		return fmt.Errorf("migrate ledger_audit: %w", err)
	}
	return nil
}

func (s *SQLSink) Publish(ctx context.Context, record domain.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_audit (id, action, sender, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID, string(record.Action), record.Sender, string(payload), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (s *SQLSink) Recent(ctx context.Context, limit int) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM ledger_audit ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger_audit: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan ledger_audit: %w", err)
		}
		var rec domain.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close is a no-op; the database handle belongs to the caller.
func (s *SQLSink) Close() error { return nil }
