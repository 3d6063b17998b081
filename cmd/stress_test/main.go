package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/vending-ledger/internal/adapter/storage"
	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous test data
	keys, _ := rdb.Keys(ctx, "ledger:*").Result()
	for _, k := range keys {
		rdb.Del(ctx, k)
	}

	// Two ledgers share the store to simulate separate hosts racing on the same counter
	store := storage.NewRedisStore(rdb)
	ledgers := []*service.Ledger{service.NewLedger(store), service.NewLedger(store)}

	if _, err := ledgers[0].Initialize(ctx, service.InitMsg{
		Owner:         "owner",
		InitialAmount: []domain.ItemAmount{{Item: domain.Chocolate, Amount: initialStock}},
	}); err != nil {
		log.Fatalf("failed to initialize ledger: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var otherErrCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			_, err := ledgers[id%len(ledgers)].Withdraw(ctx, domain.Chocolate)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				otherErrCount.Add(1)
				log.Printf("request %d: %v", id, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	outOfStock := outOfStockCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", outOfStock)
	fmt.Printf("Other errors:     %d\n", otherErrCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && outOfStock == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d withdrawals succeeded, %d out of stock\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d out of stock, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, outOfStock)
	}

	// Verify final stock
	items, err := ledgers[0].Items(ctx)
	if err != nil {
		log.Fatalf("failed to query items: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", items[0].Amount)

	if items[0].Amount == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", items[0].Amount)
	}
}
