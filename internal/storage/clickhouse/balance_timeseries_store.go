package clickhouse

import (
	"context"
	"fmt"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// BalanceTimeseriesStore implements storage.BalanceTimeseriesStore
// using ClickHouse.
type BalanceTimeseriesStore struct {
	conn *Conn
}

// NewBalanceTimeseriesStore creates a new BalanceTimeseriesStore.
func NewBalanceTimeseriesStore(conn *Conn) *BalanceTimeseriesStore {
	return &BalanceTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BalanceTimeseriesStore = (*BalanceTimeseriesStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate (wallet, timestamp_ms).
func (s *BalanceTimeseriesStore) InsertBulk(ctx context.Context, samples []*domain.BalanceSample) error {
	if len(samples) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		wallet      string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, p := range samples {
		if p.Balance < 0 {
			return storage.ErrInvalidInput
		}
		k := key{p.Wallet, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range samples {
		exists, err := s.exists(ctx, p.Wallet, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO balance_timeseries (wallet, timestamp_ms, balance)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range samples {
		if err := batch.Append(p.Wallet, uint64(p.TimestampMs), uint64(p.Balance)); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ByWallet retrieves all samples for a wallet, ordered by timestamp ASC.
func (s *BalanceTimeseriesStore) ByWallet(ctx context.Context, wallet string) ([]*domain.BalanceSample, error) {
	query := `
		SELECT wallet, timestamp_ms, balance
		FROM balance_timeseries
		WHERE wallet = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query by wallet: %w", err)
	}
	defer rows.Close()

	return scanBalanceSamples(rows)
}

// ByTimeRange retrieves a wallet's samples within [start, end), ordered
// by timestamp ASC.
func (s *BalanceTimeseriesStore) ByTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.BalanceSample, error) {
	query := `
		SELECT wallet, timestamp_ms, balance
		FROM balance_timeseries
		WHERE wallet = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBalanceSamples(rows)
}

// exists checks if a sample with the given key exists.
func (s *BalanceTimeseriesStore) exists(ctx context.Context, wallet string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM balance_timeseries
		WHERE wallet = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, wallet, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanBalanceSamples scans multiple rows.
func scanBalanceSamples(rows chRows) ([]*domain.BalanceSample, error) {
	var samples []*domain.BalanceSample

	for rows.Next() {
		var p domain.BalanceSample
		var timestampMs, balance uint64

		if err := rows.Scan(&p.Wallet, &timestampMs, &balance); err != nil {
			return nil, fmt.Errorf("scan balance sample row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		p.Balance = int64(balance)
		samples = append(samples, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance sample rows: %w", err)
	}

	return samples, nil
}
