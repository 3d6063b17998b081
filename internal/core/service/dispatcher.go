package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

var ErrInvalidMessage = errors.New("invalid message")

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	actionQuery    = "items_count"
)

type RefillMsg struct {
	Item   domain.Item `json:"item"`
	Amount uint64      `json:"amount"`
}

// ExecuteMsg holds exactly one of GetItem or Refill.
type ExecuteMsg struct {
	GetItem *domain.Item `json:"get_item,omitempty"`
	Refill  *RefillMsg   `json:"refill,omitempty"`
}

type QueryMsg struct {
	ItemsCount *struct{} `json:"items_count,omitempty"`
}

type ItemsCountResp struct {
	Items []domain.ItemAmount `json:"items"`
}

// Metrics receives per-call observations.
type Metrics interface {
	ObserveRequest(action, outcome string, elapsed time.Duration)
	SetItemCount(item domain.Item, count uint64)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(string, string, time.Duration) {}
func (nopMetrics) SetItemCount(domain.Item, uint64)             {}

// Dispatcher routes messages to the Ledger, runs one state-changing call at a
// time and queues an audit record for every committed call.
type Dispatcher struct {
	ledger      *Ledger
	mu          sync.Mutex
	recordQueue chan domain.Record
	closeMu     sync.RWMutex
	closed      bool
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

func NewDispatcher(ledger *Ledger, queueSize int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		ledger:      ledger,
		recordQueue: make(chan domain.Record, queueSize),
		metrics:     nopMetrics{},
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Instantiate(ctx context.Context, sender string, msg InitMsg) (domain.Response, error) {
	return d.commit(ctx, domain.ActionInstantiate, sender, func(ctx context.Context) (domain.Response, error) {
		return d.ledger.Initialize(ctx, msg)
	})
}

func (d *Dispatcher) Execute(ctx context.Context, sender string, msg ExecuteMsg) (domain.Response, error) {
	switch {
	case msg.GetItem != nil && msg.Refill == nil:
		item := *msg.GetItem
		return d.commit(ctx, domain.ActionGetItem, sender, func(ctx context.Context) (domain.Response, error) {
			return d.ledger.Withdraw(ctx, item)
		})
	case msg.Refill != nil && msg.GetItem == nil:
		refill := *msg.Refill
		return d.commit(ctx, domain.ActionRefill, sender, func(ctx context.Context) (domain.Response, error) {
			return d.ledger.Restock(ctx, sender, refill.Item, refill.Amount)
		})
	default:
		return domain.Response{}, ErrInvalidMessage
	}
}

func (d *Dispatcher) Query(ctx context.Context, msg QueryMsg) (ItemsCountResp, error) {
	if msg.ItemsCount == nil {
		return ItemsCountResp{}, ErrInvalidMessage
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ledger."+actionQuery)
	defer span.End()

	start := d.now()
	items, err := d.ledger.Items(ctx)
	d.metrics.ObserveRequest(actionQuery, outcome(err), d.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ItemsCountResp{}, err
	}
	for _, ia := range items {
		d.metrics.SetItemCount(ia.Item, ia.Amount)
	}
	return ItemsCountResp{Items: items}, nil
}

func (d *Dispatcher) commit(
	ctx context.Context,
	action domain.Action,
	sender string,
	call func(context.Context) (domain.Response, error),
) (domain.Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ledger."+string(action))
	defer span.End()
	span.SetAttributes(attribute.String("ledger.sender", sender))

	d.mu.Lock()
	start := d.now()
	resp, err := call(ctx)
	d.mu.Unlock()

	d.metrics.ObserveRequest(string(action), outcome(err), d.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Response{}, err
	}

	for _, ev := range resp.Events {
		d.metrics.SetItemCount(ev.Item, ev.Total)
	}

	record := domain.Record{
		ID:         uuid.NewString(),
		Action:     action,
		Sender:     sender,
		Attributes: resp.Attributes,
		Events:     resp.Events,
		CreatedAt:  d.now().UTC(),
	}
	d.enqueue(ctx, record)
	return resp, nil
}

// enqueue hands record to the workers. A free slot always wins over a
// cancelled context. Records from calls that finish after Close are dropped.
func (d *Dispatcher) enqueue(ctx context.Context, record domain.Record) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()

	if d.closed {
		d.logger.Warn("audit record dropped after close",
			zap.String("record_id", record.ID),
			zap.String("action", string(record.Action)))
		return
	}

	select {
	case d.recordQueue <- record:
		return
	default:
	}
	select {
	case d.recordQueue <- record:
	case <-ctx.Done():
		d.logger.Warn("audit record dropped",
			zap.String("record_id", record.ID),
			zap.String("action", string(record.Action)),
			zap.Error(ctx.Err()))
	}
}

// Records exposes the audit queue to workers.
func (d *Dispatcher) Records() <-chan domain.Record {
	return d.recordQueue
}

// Close closes the audit queue. It is safe to call more than once and while
// calls are still in flight.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.recordQueue)
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeSuccess
}

const tracerName = "github.com/rl1809/vending-ledger/internal/core/service"
