// Package snapshot records periodic holder balance snapshots from an
// upstream holder source, filtered by the exclusion list. The RPC
// transport behind the source lives outside this engine.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/events"
	"copper-rewards/internal/observability"
	"copper-rewards/internal/storage"
)

// HolderBalance is one wallet's live balance from the holder source.
type HolderBalance struct {
	Wallet  string
	Balance int64
}

// HolderSource supplies current holder balances and token supply.
type HolderSource interface {
	HolderBalances(ctx context.Context) ([]HolderBalance, error)
	TokenSupply(ctx context.Context) (int64, error)
}

// DefaultProbability is the hourly snapshot chance, targeting three to
// six snapshots per day. Irregular timing keeps balance flippers from
// gaming the TWAB window.
const DefaultProbability = 0.4

// Recorder takes balance snapshots.
type Recorder struct {
	source      HolderSource
	balances    storage.BalanceStore
	excluded    storage.ExcludedWalletStore
	stats       storage.StatsStore
	timeseries  storage.BalanceTimeseriesStore
	probability float64
	logger      *log.Logger
	metrics     *observability.Metrics
	hub         *events.Hub
	now         func() time.Time
	roll        func() float64
}

// Options for creating a Recorder. Metrics, Hub and Timeseries are
// optional; Probability zero means DefaultProbability.
type Options struct {
	Source      HolderSource
	Balances    storage.BalanceStore
	Excluded    storage.ExcludedWalletStore
	Stats       storage.StatsStore
	Timeseries  storage.BalanceTimeseriesStore
	Probability float64
	Logger      *log.Logger
	Metrics     *observability.Metrics
	Hub         *events.Hub
}

// NewRecorder creates a Recorder.
func NewRecorder(opts Options) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	prob := opts.Probability
	if prob <= 0 {
		prob = DefaultProbability
	}
	return &Recorder{
		source:      opts.Source,
		balances:    opts.Balances,
		excluded:    opts.Excluded,
		stats:       opts.Stats,
		timeseries:  opts.Timeseries,
		probability: prob,
		logger:      logger,
		metrics:     opts.Metrics,
		hub:         opts.Hub,
		now:         time.Now,
		roll:        rand.Float64,
	}
}

// SetNow overrides the clock, for tests.
func (r *Recorder) SetNow(now func() time.Time) {
	r.now = now
}

// SetRoll overrides the cadence roll, for tests.
func (r *Recorder) SetRoll(roll func() float64) {
	r.roll = roll
}

// ShouldRecord rolls the hourly cadence.
func (r *Recorder) ShouldRecord() bool {
	take := r.roll() < r.probability
	if !take && r.metrics != nil {
		r.metrics.SnapshotsSkipped.Inc()
	}
	return take
}

// Record takes one snapshot: pulls live balances, drops excluded
// wallets, and persists the snapshot with all records atomically.
// Returns nil without error when the source reports no holders.
func (r *Recorder) Record(ctx context.Context) (*domain.BalanceSnapshot, error) {
	holders, err := r.source.HolderBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch holder balances: %w", err)
	}
	if len(holders) == 0 {
		r.logger.Printf("no holders reported, skipping snapshot")
		return nil, nil
	}

	supply, err := r.source.TokenSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch token supply: %w", err)
	}

	excluded, err := r.excluded.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list excluded wallets: %w", err)
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e.Wallet] = struct{}{}
	}

	now := r.now().UTC()
	snap := &domain.BalanceSnapshot{
		ID:          uuid.New(),
		Timestamp:   now,
		TotalSupply: supply,
		CreatedAt:   now,
	}

	records := make([]*domain.BalanceRecord, 0, len(holders))
	for _, h := range holders {
		if _, drop := skip[h.Wallet]; drop {
			continue
		}
		if h.Balance < 0 {
			return nil, fmt.Errorf("%w: negative balance for %s", storage.ErrInvalidInput, h.Wallet)
		}
		records = append(records, &domain.BalanceRecord{
			SnapshotID: snap.ID,
			Wallet:     h.Wallet,
			Balance:    h.Balance,
		})
	}
	snap.TotalHolders = len(records)

	if err := r.balances.InsertSnapshot(ctx, snap, records); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	if err := r.stats.RecordSnapshot(ctx, snap.TotalHolders, now); err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}

	// Analytics mirror is best-effort; a failure there never loses
	// the snapshot itself.
	if r.timeseries != nil {
		samples := make([]*domain.BalanceSample, len(records))
		for i, rec := range records {
			samples[i] = &domain.BalanceSample{
				Wallet:      rec.Wallet,
				TimestampMs: now.UnixMilli(),
				Balance:     rec.Balance,
			}
		}
		if err := r.timeseries.InsertBulk(ctx, samples); err != nil {
			r.logger.Printf("mirror snapshot to timeseries: %v", err)
		}
	}

	r.logger.Printf("snapshot taken: id=%s holders=%d supply=%d", snap.ID, snap.TotalHolders, supply)
	if r.metrics != nil {
		r.metrics.SnapshotsTaken.Inc()
		r.metrics.HoldersObserved.Set(float64(snap.TotalHolders))
	}
	if r.hub != nil {
		r.hub.Broadcast(events.TypeSnapshotTaken, map[string]any{
			"id":      snap.ID.String(),
			"holders": snap.TotalHolders,
			"supply":  supply,
		})
	}
	return snap, nil
}
