// Package main provides one-shot distribution commands against the
// database:
//
//	distribute check    - evaluate triggers and execute if one fires
//	distribute force    - execute now, bypassing the triggers
//	distribute preview  - print the allocation that would run, no writes
//	distribute status   - print pool and trigger state
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/chain"
	"copper-rewards/internal/distribution"
	"copper-rewards/internal/domain"
	"copper-rewards/internal/hashpower"
	"copper-rewards/internal/pricefeed"
	"copper-rewards/internal/storage/migrations"
	pgstore "copper-rewards/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	collectorEndpoint := flag.String("collector-endpoint", os.Getenv("COLLECTOR_ENDPOINT"), "Balance collector HTTP endpoint")
	tokenMint := flag.String("token-mint", os.Getenv("TOKEN_MINT"), "Token mint address for the price feed")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	poolAmount := flag.Int64("pool-amount", 0, "Pool override for force (raw units, 0 = live balance)")
	thresholdUSD := flag.Float64("threshold-usd", 250, "Pool USD value that triggers a distribution")
	maxHours := flag.Int("max-hours", 24, "Hours after which a distribution fires regardless of pool value")
	minBalanceUSD := flag.Float64("min-balance-usd", 50, "Eligibility floor on TWAB value in USD")
	tokenDecimals := flag.Int("token-decimals", 6, "Token decimal places")
	lockLease := flag.Duration("lock-lease", 15*time.Minute, "Execution lock lease before takeover")

	flag.Parse()

	logger := log.New(os.Stdout, "[distribute] ", log.LstdFlags)

	command := flag.Arg(0)
	if command == "" {
		logger.Fatal("usage: distribute [flags] check|force|preview|status")
	}
	if *collectorEndpoint == "" {
		logger.Fatal("--collector-endpoint is required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	cfg := distribution.Config{
		ThresholdUSD:  decimal.NewFromFloat(*thresholdUSD),
		MaxHours:      *maxHours,
		MinBalanceUSD: decimal.NewFromFloat(*minBalanceUSD),
		TokenDecimals: *tokenDecimals,
		DefaultWindow: 24 * time.Hour,
		LockLease:     *lockLease,
	}

	chainClient := chain.NewClient(*collectorEndpoint)
	balances := pgstore.NewBalanceStore(pool)
	streaks := pgstore.NewStreakStore(pool)

	tiers := domain.DefaultTiers()
	if err := tiers.Validate(); err != nil {
		logger.Fatalf("Tier table: %v", err)
	}

	engine := distribution.New(distribution.Options{
		Distributions: pgstore.NewDistributionStore(pool),
		Lock:          pgstore.NewExecutionLock(pool, cfg.LockLease),
		Pool:          chainClient,
		Price:         pricefeed.NewCached(pricefeed.NewJupiterClient(*tokenMint), logger),
		Aggregator:    hashpower.NewAggregator(balances, streaks, tiers),
		Config:        cfg,
		Logger:        logger,
	})

	switch command {
	case "check":
		result, err := engine.Run(ctx)
		if err != nil {
			logger.Fatalf("Run: %v", err)
		}
		printResult(result)
	case "force":
		result, err := engine.RunManual(ctx, *poolAmount)
		if err != nil {
			logger.Fatalf("Run manual: %v", err)
		}
		printResult(result)
	case "preview":
		plan, skipReason, err := engine.Preview(ctx)
		if err != nil {
			logger.Fatalf("Preview: %v", err)
		}
		if plan == nil {
			fmt.Printf("nothing to distribute: %s\n", skipReason)
			return
		}
		printPlan(plan)
	case "status":
		status, err := engine.PoolStatus(ctx)
		if err != nil {
			logger.Fatalf("Pool status: %v", err)
		}
		printStatus(status)
	default:
		logger.Fatalf("Unknown command %q (want check|force|preview|status)", command)
	}
}

func printResult(result *distribution.RunResult) {
	switch result.Status {
	case distribution.StatusExecuted:
		d := result.Distribution
		fmt.Printf("executed: id=%s trigger=%s pool=%d recipients=%d dust=%d\n",
			d.ID, d.TriggerType, d.PoolAmount, d.RecipientCount, result.Plan.Dust)
	case distribution.StatusSkipped:
		fmt.Printf("skipped: %s\n", result.SkipReason)
	case distribution.StatusConflict:
		fmt.Println("conflict: another distribution is in progress")
	}
}

func printPlan(plan *distribution.Plan) {
	fmt.Printf("pool=%d value=$%s total_power=%s recipients=%d dust=%d\n",
		plan.PoolAmount, plan.PoolValueUSD.StringFixed(2),
		plan.TotalHashPower.String(), len(plan.Recipients), plan.Dust)
	for _, r := range plan.Recipients {
		fmt.Printf("  %s twab=%d tier_mult=%s power=%s amount=%d\n",
			r.Wallet, r.TWAB, r.Multiplier.String(), r.HashPower.String(), r.Amount)
	}
}

func printStatus(status *distribution.PoolStatus) {
	fmt.Printf("pool=%d value=$%s\n", status.Balance, status.ValueUSD.StringFixed(2))
	if status.LastExecutedAt != nil {
		fmt.Printf("last distribution: %s (%.1fh ago)\n", status.LastExecutedAt.Format(time.RFC3339), status.HoursSinceLast)
	} else {
		fmt.Println("last distribution: never")
	}
	fmt.Printf("threshold met: %v\ntime trigger met: %v\nshould run: %v\n",
		status.ThresholdMet, status.TimeTriggerMet, status.ShouldRun)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
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

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
