package port

import (
	"context"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

type AuditSink interface {
	// Publish persists one audit record
	Publish(ctx context.Context, record domain.Record) error

	Close() error
}
