// Package main provides the rewards daemon that runs all components
// together:
// - Snapshot recorder (probabilistic hourly cadence)
// - Streak upgrade sweep (scheduled)
// - Distribution trigger check (scheduled)
// - HTTP surface: health, status, metrics, event websocket, signals
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/chain"
	"copper-rewards/internal/distribution"
	"copper-rewards/internal/domain"
	"copper-rewards/internal/events"
	"copper-rewards/internal/hashpower"
	"copper-rewards/internal/observability"
	"copper-rewards/internal/pricefeed"
	"copper-rewards/internal/snapshot"
	"copper-rewards/internal/storage"
	chstore "copper-rewards/internal/storage/clickhouse"
	"copper-rewards/internal/storage/memory"
	"copper-rewards/internal/storage/migrations"
	pgstore "copper-rewards/internal/storage/postgres"
	"copper-rewards/internal/streak"
)

// Server holds all components of the rewards daemon.
type Server struct {
	snapshotInterval time.Duration
	sweepInterval    time.Duration
	checkInterval    time.Duration

	stores *allStores

	chain    *chain.Client
	recorder *snapshot.Recorder
	tracker  *streak.Tracker
	engine   *distribution.Engine
	hub      *events.Hub
	metrics  *observability.Metrics
	logger   *log.Logger

	mu        sync.Mutex
	startedAt time.Time
	lastSnap  time.Time
	lastSweep time.Time
	lastCheck time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	balances      storage.BalanceStore
	streaks       storage.StreakStore
	distributions storage.DistributionStore
	excluded      storage.ExcludedWalletStore
	stats         storage.StatsStore
	lock          storage.ExecutionLock
	timeseries    storage.BalanceTimeseriesStore // nil without ClickHouse
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	collectorEndpoint := flag.String("collector-endpoint", os.Getenv("COLLECTOR_ENDPOINT"), "Balance collector HTTP endpoint")
	tokenMint := flag.String("token-mint", os.Getenv("TOKEN_MINT"), "Token mint address for the price feed")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional analytics mirror)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP address for status, signals and websocket")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	snapshotInterval := flag.Duration("snapshot-interval", 1*time.Hour, "Snapshot cadence tick")
	sweepInterval := flag.Duration("sweep-interval", 1*time.Hour, "Tier upgrade sweep interval")
	checkInterval := flag.Duration("check-interval", 10*time.Minute, "Distribution trigger check interval")
	snapshotProb := flag.Float64("snapshot-prob", snapshot.DefaultProbability, "Probability of taking a snapshot per tick")
	thresholdUSD := flag.Float64("threshold-usd", 250, "Pool USD value that triggers a distribution")
	maxHours := flag.Int("max-hours", 24, "Hours after which a distribution fires regardless of pool value")
	minBalanceUSD := flag.Float64("min-balance-usd", 50, "Eligibility floor on TWAB value in USD")
	tokenDecimals := flag.Int("token-decimals", 6, "Token decimal places")
	lockLease := flag.Duration("lock-lease", 15*time.Minute, "Execution lock lease before takeover")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[rewardsd] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *collectorEndpoint == "" {
		logger.Fatal("--collector-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	cfg := distribution.Config{
		ThresholdUSD:  decimal.NewFromFloat(*thresholdUSD),
		MaxHours:      *maxHours,
		MinBalanceUSD: decimal.NewFromFloat(*minBalanceUSD),
		TokenDecimals: *tokenDecimals,
		DefaultWindow: 24 * time.Hour,
		LockLease:     *lockLease,
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, cfg.LockLease)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server, err := buildServer(stores, *collectorEndpoint, *tokenMint, cfg, *snapshotProb, *snapshotInterval, *sweepInterval, *checkInterval, logger)
	if err != nil {
		logger.Fatalf("Failed to build server: %v", err)
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP servers
	go server.startHTTPServer(*listenAddr)
	go server.startMetricsServer(*metricsAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, lockLease time.Duration) (*allStores, func(), error) {
	if useMemory {
		stats := memory.NewStatsStore()
		stores := &allStores{
			balances:      memory.NewBalanceStore(),
			streaks:       memory.NewStreakStore(),
			distributions: memory.NewDistributionStore(stats),
			excluded:      memory.NewExcludedWalletStore(),
			stats:         stats,
			lock:          memory.NewExecutionLock(lockLease),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		balances:      pgstore.NewBalanceStore(pool),
		streaks:       pgstore.NewStreakStore(pool),
		distributions: pgstore.NewDistributionStore(pool),
		excluded:      pgstore.NewExcludedWalletStore(pool),
		stats:         pgstore.NewStatsStore(pool),
		lock:          pgstore.NewExecutionLock(pool, lockLease),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse analytics mirror is optional
	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.timeseries = chstore.NewBalanceTimeseriesStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// buildServer wires all engine components.
func buildServer(stores *allStores, collectorEndpoint, tokenMint string, cfg distribution.Config, snapshotProb float64, snapshotInterval, sweepInterval, checkInterval time.Duration, logger *log.Logger) (*Server, error) {
	metrics := observability.NewMetrics("copper_rewards")
	hub := events.NewHub(log.New(os.Stdout, "[events] ", log.LstdFlags))

	chainClient := chain.NewClient(collectorEndpoint)

	tiers := domain.DefaultTiers()
	tracker, err := streak.NewTracker(stores.streaks, tiers, log.New(os.Stdout, "[streak] ", log.LstdFlags))
	if err != nil {
		return nil, err
	}

	aggregator := hashpower.NewAggregator(stores.balances, stores.streaks, tiers)

	price := pricefeed.NewCached(
		pricefeed.NewJupiterClient(tokenMint),
		log.New(os.Stdout, "[pricefeed] ", log.LstdFlags),
	)

	engine := distribution.New(distribution.Options{
		Distributions: stores.distributions,
		Lock:          stores.lock,
		Pool:          chainClient,
		Price:         price,
		Aggregator:    aggregator,
		Config:        cfg,
		Logger:        log.New(os.Stdout, "[distribution] ", log.LstdFlags),
		Metrics:       metrics,
		Hub:           hub,
	})

	recorder := snapshot.NewRecorder(snapshot.Options{
		Source:      chainClient,
		Balances:    stores.balances,
		Excluded:    stores.excluded,
		Stats:       stores.stats,
		Timeseries:  stores.timeseries,
		Probability: snapshotProb,
		Logger:      log.New(os.Stdout, "[snapshot] ", log.LstdFlags),
		Metrics:     metrics,
		Hub:         hub,
	})

	return &Server{
		snapshotInterval: snapshotInterval,
		sweepInterval:    sweepInterval,
		checkInterval:    checkInterval,
		stores:           stores,
		chain:            chainClient,
		recorder:         recorder,
		tracker:          tracker,
		engine:           engine,
		hub:              hub,
		metrics:          metrics,
		logger:           logger,
		startedAt:        time.Now(),
	}, nil
}

// Run starts all scheduled loops and blocks until the context ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting rewards daemon...")

	errCh := make(chan error, 3)

	go func() {
		if err := s.runSnapshotLoop(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("snapshot loop: %w", err)
		}
	}()
	go func() {
		if err := s.runSweepLoop(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("sweep loop: %w", err)
		}
	}()
	go func() {
		if err := s.runDistributionLoop(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("distribution loop: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.hub.Close()
		return ctx.Err()
	case err := <-errCh:
		s.hub.Close()
		return err
	}
}

// runSnapshotLoop rolls the snapshot cadence every tick.
func (s *Server) runSnapshotLoop(ctx context.Context) error {
	s.logger.Printf("Starting snapshot loop (tick: %v)...", s.snapshotInterval)

	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.takeSnapshot(ctx)
		}
	}
}

func (s *Server) takeSnapshot(ctx context.Context) {
	if !s.recorder.ShouldRecord() {
		return
	}
	snap, err := s.recorder.Record(ctx)
	if err != nil {
		s.logger.Printf("Snapshot error: %v", err)
		return
	}
	s.mu.Lock()
	s.lastSnap = time.Now()
	s.mu.Unlock()

	if snap != nil {
		s.registerHolders(ctx)
	}
}

// registerHolders starts streaks for newly observed wallets. Start is
// idempotent so existing streaks pass through untouched.
func (s *Server) registerHolders(ctx context.Context) {
	holders, err := s.chain.HolderBalances(ctx)
	if err != nil {
		s.logger.Printf("Register holders: %v", err)
		return
	}
	for _, h := range holders {
		if _, err := s.tracker.Start(ctx, h.Wallet); err != nil {
			s.logger.Printf("Start streak for %s: %v", h.Wallet, err)
		}
	}
}

// runSweepLoop applies earned tier upgrades on schedule.
func (s *Server) runSweepLoop(ctx context.Context) error {
	s.logger.Printf("Starting upgrade sweep loop (interval: %v)...", s.sweepInterval)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			upgraded, err := s.tracker.SweepUpgrades(ctx)
			if err != nil {
				s.logger.Printf("Upgrade sweep error: %v", err)
				continue
			}
			s.mu.Lock()
			s.lastSweep = time.Now()
			s.mu.Unlock()
			if upgraded > 0 {
				s.metrics.TierUpgrades.Add(float64(upgraded))
				s.hub.Broadcast(events.TypeTierUpgraded, map[string]any{"upgrades": upgraded})
			}
		}
	}
}

// runDistributionLoop checks the payout triggers on schedule.
func (s *Server) runDistributionLoop(ctx context.Context) error {
	s.logger.Printf("Starting distribution check loop (interval: %v)...", s.checkInterval)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.engine.Run(ctx)
			if err != nil {
				s.logger.Printf("Distribution check error: %v", err)
				continue
			}
			s.mu.Lock()
			s.lastCheck = time.Now()
			s.mu.Unlock()
			if result.Status == distribution.StatusExecuted {
				s.logger.Printf("Distribution %s executed: %d recipients", result.Distribution.ID, result.Distribution.RecipientCount)
			}
		}
	}
}

// startHTTPServer serves status, signal and websocket endpoints.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/signals/sell", s.handleSell)
	mux.HandleFunc("/signals/hold", s.handleHold)
	mux.Handle("/ws", s.hub)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// startMetricsServer serves Prometheus metrics.
func (s *Server) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	s.logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("Metrics server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status           string                   `json:"status"`
	Uptime           string                   `json:"uptime"`
	TotalHolders     int64                    `json:"total_holders"`
	TotalDistributed int64                    `json:"total_distributed"`
	TierCounts       map[int]int              `json:"tier_counts"`
	Pool             *distribution.PoolStatus `json:"pool,omitempty"`
	LastSnapshot     time.Time                `json:"last_snapshot,omitempty"`
	LastSweep        time.Time                `json:"last_sweep,omitempty"`
	LastTriggerCheck time.Time                `json:"last_trigger_check,omitempty"`
	Subscribers      int                      `json:"subscribers"`
}

// handleStatus returns daemon status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.stores.stats.Get(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	counts, err := s.tracker.TierCounts(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pool, err := s.engine.PoolStatus(ctx)
	if err != nil {
		s.logger.Printf("Pool status: %v", err)
	}

	s.mu.Lock()
	resp := StatusResponse{
		Status:           "running",
		Uptime:           time.Since(s.startedAt).String(),
		TotalHolders:     int64(stats.TotalHolders),
		TotalDistributed: stats.TotalDistributed,
		TierCounts:       counts,
		Pool:             pool,
		LastSnapshot:     s.lastSnap,
		LastSweep:        s.lastSweep,
		LastTriggerCheck: s.lastCheck,
		Subscribers:      s.hub.ClientCount(),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type signalRequest struct {
	Wallet string `json:"wallet"`
}

// handleSell applies an external sell signal to a wallet's streak.
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.decodeSignal(w, r)
	if !ok {
		return
	}

	streakState, err := s.tracker.ProcessSell(r.Context(), wallet)
	switch {
	case errors.Is(err, domain.ErrInvalidWallet):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "wallet has no streak", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.metrics.SellsProcessed.Inc()
	s.hub.Broadcast(events.TypeSellProcessed, map[string]any{
		"wallet": wallet,
		"tier":   streakState.CurrentTier,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(streakState)
}

// handleHold starts a streak for a first-time holder.
func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.decodeSignal(w, r)
	if !ok {
		return
	}

	streakState, err := s.tracker.Start(r.Context(), wallet)
	switch {
	case errors.Is(err, domain.ErrInvalidWallet):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(streakState)
}

func (s *Server) decodeSignal(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Wallet == "" {
		http.Error(w, "body must be {\"wallet\": ...}", http.StatusBadRequest)
		return "", false
	}
	return req.Wallet, true
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
