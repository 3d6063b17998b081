package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/vending-ledger/internal/adapter/handler"
	"github.com/rl1809/vending-ledger/internal/adapter/publisher"
	"github.com/rl1809/vending-ledger/internal/adapter/storage"
	"github.com/rl1809/vending-ledger/internal/config"
	"github.com/rl1809/vending-ledger/internal/core/service"
	"github.com/rl1809/vending-ledger/internal/logging"
	"github.com/rl1809/vending-ledger/internal/metrics"
	"github.com/rl1809/vending-ledger/internal/port"
)

func main() {
	configDir := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)

	store, mysqlDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sinks, auditDB, err := openSinks(ctx, cfg, mysqlDB, logger)
	if err != nil {
		return err
	}
	if auditDB != nil {
		defer auditDB.Close()
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("failed to close audit sink", zap.String("sink", s.Name()), zap.Error(err))
			}
		}
	}()

	ledger := service.NewLedger(store)
	dispatcher := service.NewDispatcher(ledger, cfg.QueueSize,
		service.WithMetrics(m),
		service.WithLogger(logger),
	)

	// Start audit workers before bootstrap so its record is drained
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			publisher.NewWorker(id, sinks, logger, m).Run(dispatcher.Records())
		}(i)
	}
	logger.Info("started audit workers", zap.Int("workers", cfg.Workers), zap.Int("sinks", len(sinks)))

	if err := bootstrap(ctx, cfg, ledger, dispatcher, logger); err != nil {
		dispatcher.Close()
		wg.Wait()
		return err
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterVendingServer(grpcServer, handler.NewGRPCHandler(dispatcher, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(dispatcher, logger).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		// handlers still running after this commit but drop their audit records
		logger.Warn("HTTP shutdown timed out", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close audit queue and wait for workers
	dispatcher.Close()
	wg.Wait()
	logger.Info("workers stopped")

	return nil
}

// openStore returns the configured ledger store. The MySQL handle is also
// returned so the audit table can share it.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.LedgerStore, *sql.DB, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		return storage.NewRedisStore(rdb), nil, nil

	case config.DriverMySQL:
		db, err := openMySQL(ctx, cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewMySQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql")
		return store, db, nil

	case config.DriverSQLite:
		store, err := storage.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite", zap.String("path", cfg.SQLite.Path))
		return store, nil, nil

	case config.DriverMongo:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		store, err := storage.OpenMongo(pingCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to mongo", zap.String("database", cfg.Mongo.Database))
		return store, nil, nil

	default:
		logger.Warn("using in-memory store; state is lost on exit")
		return storage.NewMemoryStore(), nil, nil
	}
}

func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// openSinks builds the audit sinks. When the store is not MySQL but the MySQL
// audit table is enabled, the handle it opens is returned for the caller to close.
func openSinks(ctx context.Context, cfg *config.Config, mysqlDB *sql.DB, logger *zap.Logger) ([]publisher.NamedSink, *sql.DB, error) {
	var (
		sinks   []publisher.NamedSink
		ownedDB *sql.DB
	)

	if cfg.Audit.MySQL {
		db := mysqlDB
		if db == nil {
			var err error
			if db, err = openMySQL(ctx, cfg.MySQL.DSN); err != nil {
				return nil, nil, err
			}
			ownedDB = db
		}
		sink := publisher.NewMySQLSink(db)
		if err := sink.Migrate(ctx); err != nil {
			if ownedDB != nil {
				ownedDB.Close()
			}
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		logger.Info("audit to mysql enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, publisher.NewKafkaSink(publisher.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)))
		logger.Info("audit to kafka enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	return sinks, ownedDB, nil
}

// bootstrap initializes the ledger from config the first time it starts.
func bootstrap(ctx context.Context, cfg *config.Config, ledger *service.Ledger, d *service.Dispatcher, logger *zap.Logger) error {
	if cfg.Owner == "" {
		return nil
	}

	initialized, err := ledger.Initialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		logger.Info("ledger already initialized")
		return nil
	}

	items, err := cfg.InitialItems()
	if err != nil {
		return err
	}
	if _, err := d.Instantiate(ctx, cfg.Owner, service.InitMsg{Owner: cfg.Owner, InitialAmount: items}); err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}
	logger.Info("initialized ledger", zap.String("owner", cfg.Owner), zap.Int("items", len(items)))
	return nil
}
