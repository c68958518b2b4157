// Package distribution evaluates payout triggers and allocates the
// reward pool proportionally to hash power, exactly once per run.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/events"
	"copper-rewards/internal/hashpower"
	"copper-rewards/internal/observability"
	"copper-rewards/internal/pricefeed"
	"copper-rewards/internal/storage"
)

// PoolSource supplies the current reward pool balance in raw units.
// The chain query behind it lives outside this engine.
type PoolSource interface {
	Balance(ctx context.Context) (int64, error)
}

// Status classifies the outcome of one run. A caller observes exactly
// one of: executed, skipped (with reason), conflict, or an error.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusSkipped  Status = "skipped"
	StatusConflict Status = "conflict"
)

// RunResult reports what one invocation did.
type RunResult struct {
	Status       Status
	Distribution *domain.Distribution
	Plan         *Plan
	SkipReason   string // set when Status == StatusSkipped
}

// Engine runs the distribution protocol: trigger check, allocation,
// atomic persistence, all under the exclusive execution lock.
type Engine struct {
	distributions storage.DistributionStore
	lock          storage.ExecutionLock
	pool          PoolSource
	price         pricefeed.Feed
	aggregator    *hashpower.Aggregator
	cfg           Config
	logger        *log.Logger
	metrics       *observability.Metrics
	hub           *events.Hub
	now           func() time.Time
}

// Options for creating an Engine. Metrics and Hub are optional.
type Options struct {
	Distributions storage.DistributionStore
	Lock          storage.ExecutionLock
	Pool          PoolSource
	Price         pricefeed.Feed
	Aggregator    *hashpower.Aggregator
	Config        Config
	Logger        *log.Logger
	Metrics       *observability.Metrics
	Hub           *events.Hub
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		distributions: opts.Distributions,
		lock:          opts.Lock,
		pool:          opts.Pool,
		price:         opts.Price,
		aggregator:    opts.Aggregator,
		cfg:           opts.Config,
		logger:        logger,
		metrics:       opts.Metrics,
		hub:           opts.Hub,
		now:           time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// Run checks the triggers and executes a distribution when one fires.
// Exactly-once: the execution lock is taken before anything else; when
// another run holds it the result is StatusConflict immediately, with
// no waiting and no retry.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	owner := uuid.NewString()
	acquired, err := e.lock.TryAcquire(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("acquire execution lock: %w", err)
	}
	if !acquired {
		if e.metrics != nil {
			e.metrics.DistributionConflicts.Inc()
			e.metrics.LockAcquireFailures.Inc()
		}
		e.logger.Printf("distribution already running, yielding")
		return &RunResult{Status: StatusConflict}, nil
	}
	defer func() {
		if err := e.lock.Release(context.WithoutCancel(ctx), owner); err != nil {
			e.logger.Printf("release execution lock: %v", err)
		}
	}()

	poolAmount, poolValueUSD, err := e.poolState(ctx)
	if err != nil {
		return nil, err
	}

	var lastAt *time.Time
	last, err := e.distributions.Latest(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load last distribution: %w", err)
	}
	if last != nil {
		lastAt = &last.ExecutedAt
	}

	trigger := EvaluateTrigger(poolValueUSD, lastAt, e.now().UTC(), e.cfg)
	if !trigger.Should {
		return e.skip(SkipTriggerNotMet), nil
	}
	e.logger.Printf("distribution triggered: type=%s pool=%d value=$%s", trigger.Type, poolAmount, poolValueUSD.StringFixed(2))

	return e.planAndExecute(ctx, poolAmount, trigger.Type, poolValueUSD)
}

// RunManual bypasses trigger evaluation but reuses the same lock and
// allocator. poolAmount <= 0 means "use the live pool balance".
func (e *Engine) RunManual(ctx context.Context, poolAmount int64) (*RunResult, error) {
	owner := uuid.NewString()
	acquired, err := e.lock.TryAcquire(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("acquire execution lock: %w", err)
	}
	if !acquired {
		if e.metrics != nil {
			e.metrics.DistributionConflicts.Inc()
			e.metrics.LockAcquireFailures.Inc()
		}
		return &RunResult{Status: StatusConflict}, nil
	}
	defer func() {
		if err := e.lock.Release(context.WithoutCancel(ctx), owner); err != nil {
			e.logger.Printf("release execution lock: %v", err)
		}
	}()

	livePool, poolValueUSD, err := e.poolState(ctx)
	if err != nil {
		return nil, err
	}
	if poolAmount <= 0 {
		poolAmount = livePool
	}

	return e.planAndExecute(ctx, poolAmount, domain.TriggerManual, poolValueUSD)
}

// Preview computes the allocation that would run now, without the lock
// and without persisting anything.
func (e *Engine) Preview(ctx context.Context) (*Plan, string, error) {
	poolAmount, poolValueUSD, err := e.poolState(ctx)
	if err != nil {
		return nil, "", err
	}
	return e.buildPlan(ctx, poolAmount, domain.TriggerManual, poolValueUSD)
}

func (e *Engine) planAndExecute(ctx context.Context, poolAmount int64, trigger domain.TriggerType, poolValueUSD decimal.Decimal) (*RunResult, error) {
	plan, skipReason, err := e.buildPlan(ctx, poolAmount, trigger, poolValueUSD)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return e.skip(skipReason), nil
	}

	dist, err := e.execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &RunResult{Status: StatusExecuted, Distribution: dist, Plan: plan}, nil
}

// execute persists the plan as one atomic unit and emits telemetry.
func (e *Engine) execute(ctx context.Context, plan *Plan) (*domain.Distribution, error) {
	now := e.now().UTC()
	dist := &domain.Distribution{
		ID:             uuid.New(),
		PoolAmount:     plan.PoolAmount,
		PoolValueUSD:   plan.PoolValueUSD,
		TotalHashPower: plan.TotalHashPower,
		RecipientCount: len(plan.Recipients),
		TriggerType:    plan.TriggerType,
		ExecutedAt:     now,
		CreatedAt:      now,
	}

	recipients := make([]*domain.DistributionRecipient, len(plan.Recipients))
	for i, r := range plan.Recipients {
		recipients[i] = &domain.DistributionRecipient{
			DistributionID: dist.ID,
			Wallet:         r.Wallet,
			TWAB:           r.TWAB,
			Multiplier:     r.Multiplier,
			HashPower:      r.HashPower,
			AmountReceived: r.Amount,
		}
	}

	if err := e.distributions.Create(ctx, dist, recipients); err != nil {
		return nil, fmt.Errorf("persist distribution: %w", err)
	}

	e.logger.Printf("distribution executed: id=%s recipients=%d pool=%d dust=%d trigger=%s",
		dist.ID, dist.RecipientCount, dist.PoolAmount, plan.Dust, dist.TriggerType)

	if e.metrics != nil {
		e.metrics.DistributionsExecuted.WithLabelValues(string(dist.TriggerType)).Inc()
		e.metrics.AmountDistributed.Add(float64(dist.PoolAmount - plan.Dust))
		e.metrics.RecipientsPerRun.Observe(float64(dist.RecipientCount))
		e.metrics.DustPerRun.Observe(float64(plan.Dust))
	}
	if e.hub != nil {
		e.hub.Broadcast(events.TypeDistributionExecuted, map[string]any{
			"id":         dist.ID.String(),
			"poolAmount": dist.PoolAmount,
			"recipients": dist.RecipientCount,
			"trigger":    string(dist.TriggerType),
			"executedAt": dist.ExecutedAt,
		})
	}
	return dist, nil
}

func (e *Engine) skip(reason string) *RunResult {
	if e.metrics != nil {
		e.metrics.DistributionsSkipped.WithLabelValues(reason).Inc()
	}
	e.logger.Printf("distribution skipped: %s", reason)
	return &RunResult{Status: StatusSkipped, SkipReason: reason}
}

// poolState reads the pool balance and its USD value.
func (e *Engine) poolState(ctx context.Context) (int64, decimal.Decimal, error) {
	balance, err := e.pool.Balance(ctx)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("read pool balance: %w", err)
	}

	price, err := e.price.PriceUSD(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.PriceFeedFailures.Inc()
		}
		e.logger.Printf("price feed unavailable, pool valued at $0: %v", err)
		price = decimal.Zero
	}

	tokens := decimal.NewFromInt(balance).Div(e.cfg.tokenMultiplier())
	return balance, tokens.Mul(price), nil
}

// PoolStatus is the live trigger view for status endpoints.
type PoolStatus struct {
	Balance        int64
	ValueUSD       decimal.Decimal
	LastExecutedAt *time.Time
	HoursSinceLast float64
	ThresholdMet   bool
	TimeTriggerMet bool
	ShouldRun      bool
}

// PoolStatus reports the pool and trigger state without running.
func (e *Engine) PoolStatus(ctx context.Context) (*PoolStatus, error) {
	balance, valueUSD, err := e.poolState(ctx)
	if err != nil {
		return nil, err
	}

	var lastAt *time.Time
	last, err := e.distributions.Latest(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load last distribution: %w", err)
	}
	if last != nil {
		lastAt = &last.ExecutedAt
	}

	trigger := EvaluateTrigger(valueUSD, lastAt, e.now().UTC(), e.cfg)
	return &PoolStatus{
		Balance:        balance,
		ValueUSD:       valueUSD,
		LastExecutedAt: lastAt,
		HoursSinceLast: trigger.HoursSince,
		ThresholdMet:   trigger.ThresholdMet,
		TimeTriggerMet: trigger.TimeTriggerMet,
		ShouldRun:      trigger.Should,
	}, nil
}
