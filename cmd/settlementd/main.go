// Package main provides the unified settlement daemon:
// - Event synchronizer (continuous): escrow event subscription, cache invalidation
// - Reconcile sweep (scheduled): retries pending post-confirmation upserts
// - HTTP API: payment return page, flow status, health, metrics
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"crowdfund-settlement/internal/backend"
	"crowdfund-settlement/internal/cache"
	"crowdfund-settlement/internal/chain"
	"crowdfund-settlement/internal/channel"
	"crowdfund-settlement/internal/commitment"
	"crowdfund-settlement/internal/confirm"
	"crowdfund-settlement/internal/eventsync"
	"crowdfund-settlement/internal/flow"
	"crowdfund-settlement/internal/httpapi"
	"crowdfund-settlement/internal/reconcile"
	"crowdfund-settlement/internal/storage"
	chstore "crowdfund-settlement/internal/storage/clickhouse"
	"crowdfund-settlement/internal/storage/memory"
	"crowdfund-settlement/internal/storage/migrations"
	pgstore "crowdfund-settlement/internal/storage/postgres"
	"crowdfund-settlement/internal/submit"
)

// stores holds the settlement storage implementations.
type stores struct {
	journal storage.ReferenceJournal
	queue   storage.ReconcileQueue
	archive storage.EventArchive
}

func main() {
	// Load .env if present; flags and real env still win
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("CHAIN_RPC_ENDPOINT"), "Escrow chain JSON-RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("CHAIN_WS_ENDPOINT"), "Escrow chain WebSocket endpoint")
	backendURL := flag.String("backend-url", os.Getenv("BACKEND_URL"), "Platform backend base URL")
	backendToken := flag.String("backend-token", os.Getenv("BACKEND_TOKEN"), "Platform backend bearer token")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the project cache (empty = in-memory)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	redirectURL := flag.String("redirect-url", os.Getenv("PAYMENT_REDIRECT_URL"), "Return URL passed to gateway payment initialization")
	watchProjects := flag.String("watch-projects", os.Getenv("WATCH_PROJECTS"), "Comma-separated project IDs to reconcile on the background poll")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API listen address")
	sweepInterval := flag.Duration("sweep-interval", reconcile.DefaultSweepInterval, "Reconcile sweep interval")
	pollInterval := flag.Duration("poll-interval", eventsync.DefaultPollInterval, "Watched-project reconciliation poll interval")

	flag.Parse()

	logger := log.New(os.Stdout, "[settlementd] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if *backendURL == "" {
		logger.Fatal("--backend-url is required")
	}
	if *redirectURL == "" {
		logger.Fatal("--redirect-url is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	projectCache := createCache(*redisAddr, logger)

	// External clients
	chainClient := chain.NewHTTPClient(*rpcEndpoint)
	eventClient, err := chain.NewWSClient(ctx, *wsEndpoint, nil)
	if err != nil {
		logger.Fatalf("Failed to connect event subscription: %v", err)
	}
	defer eventClient.Close()

	var backendOpts []backend.Option
	if *backendToken != "" {
		backendOpts = append(backendOpts, backend.WithAuthToken(*backendToken))
	}
	api := backend.NewHTTPClient(*backendURL, backendOpts...)

	// Settlement pipeline
	submitter := submit.NewSubmitter(chainClient, api, st.journal, submit.Options{
		RedirectURL: *redirectURL,
		Logger:      logger,
	})
	watcher := confirm.NewWatcher(
		confirm.NewReceiptAwaiter(chainClient, logger),
		confirm.NewPollAwaiter(api, confirm.PollOptions{Logger: logger}),
	)
	reconciler := reconcile.NewReconciler(api, projectCache, st.queue, reconcile.Options{Logger: logger})
	pipeline := flow.NewPipeline(
		commitment.NewIntake(nil),
		channel.NewSelector(nil),
		submitter,
		watcher,
		reconciler,
		st.journal,
		logger,
	)

	// Background components
	sweeper := reconcile.NewSweeper(api, projectCache, st.queue, reconcile.SweepOptions{
		Interval: *sweepInterval,
		Logger:   logger,
	})
	synchronizer := eventsync.NewSynchronizer(eventClient, chainClient, projectCache, st.archive, eventsync.Options{
		PollInterval: *pollInterval,
		Logger:       logger,
	})
	for _, projectID := range splitList(*watchProjects) {
		synchronizer.Watch(projectID)
	}

	go sweeper.Run(ctx)
	go drainNotifications(ctx, synchronizer, logger)
	go func() {
		if err := synchronizer.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("Event synchronizer stopped: %v", err)
		}
	}()

	// HTTP API
	router := httpapi.BuildRouter(httpapi.RouterDeps{Pipeline: pipeline})
	server := &http.Server{Addr: *httpAddr, Handler: router}
	go func() {
		logger.Printf("HTTP API listening on %s", *httpAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the journal, queue and archive stores, running
// migrations for the durable backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			journal: memory.NewReferenceJournal(),
			queue:   memory.NewReconcileQueue(),
			archive: memory.NewEventArchive(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		_ = chConn.Close()
	}
	return &stores{
		journal: pgstore.NewReferenceJournal(pool),
		queue:   pgstore.NewReconcileQueue(pool),
		archive: chstore.NewEventArchive(chConn),
	}, cleanup, nil
}

// createCache picks the Redis cache when an address is configured, the
// in-memory cache otherwise.
func createCache(redisAddr string, logger *log.Logger) cache.ProjectCache {
	if redisAddr == "" {
		return cache.NewMemory()
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	logger.Printf("Project cache backed by redis at %s", redisAddr)
	return cache.NewRedis(client)
}

// drainNotifications logs the synchronizer's advisory change feed.
func drainNotifications(ctx context.Context, s *eventsync.Synchronizer, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.Notifications():
			if !ok {
				return
			}
			logger.Printf("[notify] %s", n.Message)
		}
	}
}

// splitList splits a comma-separated flag value.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
