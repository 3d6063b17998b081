package service_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/vending-ledger/internal/adapter/publisher"
	"github.com/rl1809/vending-ledger/internal/adapter/storage"
	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
	"github.com/rl1809/vending-ledger/internal/port"
)

type testEnv struct {
	store   port.LedgerStore
	sink    *publisher.SQLSink
	cleanup func()
}

func setupSQLiteEnv(t *testing.T) *testEnv {
	ctx := context.Background()
	store, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sink := publisher.NewSQLiteSink(store.DB())
	if err := sink.Migrate(ctx); err != nil {
		t.Fatalf("migrate audit: %v", err)
	}
	return &testEnv{store: store, sink: sink, cleanup: func() { store.Close() }}
}

// setupRedisMySQLEnv keeps counters in Redis and the audit trail in MySQL.
func setupRedisMySQLEnv(t *testing.T) *testEnv {
	if testing.Short() {
		t.Skip("skipping Redis and MySQL in short mode")
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/vending?parseTime=true"
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		rdb.Close()
		db.Close()
		t.Skipf("MySQL not available: %v", err)
	}

	keys, _ := rdb.Keys(ctx, "ledger:*").Result()
	if len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}
	sink := publisher.NewMySQLSink(db)
	if err := sink.Migrate(ctx); err != nil {
		t.Fatalf("migrate audit: %v", err)
	}
	db.ExecContext(ctx, `DELETE FROM ledger_audit`)

	return &testEnv{
		store: storage.NewRedisStore(rdb),
		sink:  sink,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func runLedgerFlow(t *testing.T, env *testEnv) {
	ctx := context.Background()
	const initialStock = 10

	d := service.NewDispatcher(service.NewLedger(env.store), 100)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			publisher.NewWorker(id, []publisher.NamedSink{env.sink}, nil, nil).Run(d.Records())
		}(i)
	}

	_, err := d.Instantiate(ctx, "operator", service.InitMsg{
		Owner:         "owner",
		InitialAmount: []domain.ItemAmount{{Item: domain.Chocolate, Amount: initialStock}},
	})
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}

	var successCount, outOfStock atomic.Int32
	var withdrawWg sync.WaitGroup
	totalRequests := 20
	for i := 0; i < totalRequests; i++ {
		withdrawWg.Add(1)
		go func() {
			defer withdrawWg.Done()
			item := domain.Chocolate
			_, err := d.Execute(ctx, "buyer", service.ExecuteMsg{GetItem: &item})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrOutOfStock):
				outOfStock.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	withdrawWg.Wait()

	_, err = d.Execute(ctx, "owner", service.ExecuteMsg{Refill: &service.RefillMsg{Item: domain.Water, Amount: 4}})
	if err != nil {
		t.Fatalf("refill failed: %v", err)
	}

	d.Close()
	wg.Wait()

	if successCount.Load() != initialStock {
		t.Errorf("expected %d successful withdrawals, got %d", initialStock, successCount.Load())
	}
	if outOfStock.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d out of stock, got %d", totalRequests-initialStock, outOfStock.Load())
	}

	resp, err := d.Query(ctx, service.QueryMsg{ItemsCount: &struct{}{}})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	want := []domain.ItemAmount{
		{Item: domain.Chocolate, Amount: 0},
		{Item: domain.Water, Amount: 4},
		{Item: domain.Chips, Amount: 0},
	}
	for i, ia := range resp.Items {
		if ia != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, ia, want[i])
		}
	}

	// One instantiate, the successful withdrawals and one refill.
	records, err := env.sink.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(records) != initialStock+2 {
		t.Errorf("expected %d audit records, got %d", initialStock+2, len(records))
	}
}

func TestIntegration_SQLite(t *testing.T) {
	env := setupSQLiteEnv(t)
	defer env.cleanup()
	runLedgerFlow(t, env)
}

func TestIntegration_RedisMySQL(t *testing.T) {
	env := setupRedisMySQLEnv(t)
	defer env.cleanup()
	runLedgerFlow(t, env)
}
