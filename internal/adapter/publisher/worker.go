package publisher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/port"
)

const publishTimeout = 5 * time.Second

// NamedSink is an AuditSink that reports a label for logs and metrics.
type NamedSink interface {
	port.AuditSink
	Name() string
}

type FailureCounter interface {
	PublishFailed(sink string)
}

type nopCounter struct{}

func (nopCounter) PublishFailed(string) {}

// Worker drains audit records into every sink. A failing sink does not stop
// delivery to the others.
type Worker struct {
	id       int
	sinks    []NamedSink
	logger   *zap.Logger
	failures FailureCounter
}

func NewWorker(id int, sinks []NamedSink, logger *zap.Logger, failures FailureCounter) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if failures == nil {
		failures = nopCounter{}
	}
	return &Worker{id: id, sinks: sinks, logger: logger.With(zap.Int("worker", id)), failures: failures}
}

// Run returns when queue is closed.
func (w *Worker) Run(queue <-chan domain.Record) {
	for record := range queue {
		for _, sink := range w.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err := sink.Publish(ctx, record)
			cancel()

			if err != nil {
				w.failures.PublishFailed(sink.Name())
				w.logger.Error("failed to publish audit record",
					zap.String("sink", sink.Name()),
					zap.String("record_id", record.ID),
					zap.String("action", string(record.Action)),
					zap.Error(err))
				continue
			}
			w.logger.Debug("published audit record",
				zap.String("sink", sink.Name()),
				zap.String("record_id", record.ID))
		}
	}
}
