package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/vending-ledger/internal/adapter/handler"
	"github.com/rl1809/vending-ledger/internal/adapter/publisher"
	"github.com/rl1809/vending-ledger/internal/adapter/storage"
	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
)

var errAuditRemote = errors.New("audit is only available for local ledgers")

type ledgerClient interface {
	Instantiate(ctx context.Context, sender, owner string, items []domain.ItemAmount) (domain.Response, error)
	Withdraw(ctx context.Context, sender string, item domain.Item) (domain.Response, error)
	Restock(ctx context.Context, sender string, item domain.Item, amount uint64) (domain.Response, error)
	Items(ctx context.Context) ([]domain.ItemAmount, error)
	Audit(ctx context.Context, limit int) ([]domain.Record, error)
	Close() error
}

// localClient runs the ledger in-process on a SQLite file and writes audit
// records to the same database.
type localClient struct {
	store      *storage.SQLStore
	sink       *publisher.SQLSink
	dispatcher *service.Dispatcher
}

func newLocalClient(ctx context.Context, path string) (*localClient, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	sink := publisher.NewSQLiteSink(store.DB())
	if err := sink.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return &localClient{
		store:      store,
		sink:       sink,
		dispatcher: service.NewDispatcher(service.NewLedger(store), 8),
	}, nil
}

func (c *localClient) Instantiate(ctx context.Context, sender, owner string, items []domain.ItemAmount) (domain.Response, error) {
	return c.dispatcher.Instantiate(ctx, sender, service.InitMsg{Owner: owner, InitialAmount: items})
}

func (c *localClient) Withdraw(ctx context.Context, sender string, item domain.Item) (domain.Response, error) {
	return c.dispatcher.Execute(ctx, sender, service.ExecuteMsg{GetItem: &item})
}

func (c *localClient) Restock(ctx context.Context, sender string, item domain.Item, amount uint64) (domain.Response, error) {
	return c.dispatcher.Execute(ctx, sender, service.ExecuteMsg{
		Refill: &service.RefillMsg{Item: item, Amount: amount},
	})
}

func (c *localClient) Items(ctx context.Context) ([]domain.ItemAmount, error) {
	resp, err := c.dispatcher.Query(ctx, service.QueryMsg{ItemsCount: &struct{}{}})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *localClient) Audit(ctx context.Context, limit int) ([]domain.Record, error) {
	return c.sink.Recent(ctx, limit)
}

// Close flushes queued audit records before closing the database.
func (c *localClient) Close() error {
	c.dispatcher.Close()
	publisher.NewWorker(0, []publisher.NamedSink{c.sink}, zap.NewNop(), nil).Run(c.dispatcher.Records())
	return c.store.Close()
}

type remoteClient struct {
	conn *grpc.ClientConn
	rpc  *handler.VendingClient
}

func newRemoteClient(addr string) (*remoteClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &remoteClient{conn: conn, rpc: handler.NewVendingClient(conn)}, nil
}

func (c *remoteClient) Instantiate(ctx context.Context, sender, owner string, items []domain.ItemAmount) (domain.Response, error) {
	resp, err := c.rpc.Instantiate(ctx, &handler.InstantiateRequest{Sender: sender, Owner: owner, InitialAmount: items})
	return toResponse(resp, err)
}

func (c *remoteClient) Withdraw(ctx context.Context, sender string, item domain.Item) (domain.Response, error) {
	resp, err := c.rpc.Withdraw(ctx, &handler.WithdrawRequest{Sender: sender, Item: item})
	return toResponse(resp, err)
}

func (c *remoteClient) Restock(ctx context.Context, sender string, item domain.Item, amount uint64) (domain.Response, error) {
	resp, err := c.rpc.Restock(ctx, &handler.RestockRequest{Sender: sender, Item: item, Amount: amount})
	return toResponse(resp, err)
}

func (c *remoteClient) Items(ctx context.Context) ([]domain.ItemAmount, error) {
	resp, err := c.rpc.ItemsCount(ctx, &handler.ItemsCountRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *remoteClient) Audit(context.Context, int) ([]domain.Record, error) {
	return nil, errAuditRemote
}

func (c *remoteClient) Close() error {
	return c.conn.Close()
}

func toResponse(resp *handler.LedgerResponse, err error) (domain.Response, error) {
	if err != nil {
		return domain.Response{}, err
	}
	if !resp.Success {
		return domain.Response{}, fmt.Errorf("%s: %s", resp.Code, resp.Message)
	}
	return domain.Response{Attributes: resp.Attributes, Events: resp.Events}, nil
}
