package domain

import (
	"time"

	"github.com/google/uuid"
)

// BalanceSnapshot is the metadata row for one balance collection pass.
// Corresponds to snapshots table in PostgreSQL. Immutable once created.
type BalanceSnapshot struct {
	ID           uuid.UUID // PRIMARY KEY
	Timestamp    time.Time // when balances were observed (UTC)
	TotalHolders int       // holders included after exclusion filtering
	TotalSupply  int64     // raw token supply at snapshot time
	CreatedAt    time.Time // record creation timestamp
}

// BalanceRecord is one wallet's balance inside a snapshot.
// Corresponds to balances table. Unique per (snapshot_id, wallet).
type BalanceRecord struct {
	SnapshotID uuid.UUID // references snapshots.id
	Wallet     string    // base58 wallet address
	Balance    int64     // raw token amount, >= 0
}

// BalancePoint is the joined (snapshot timestamp, balance) shape the
// TWAB calculator consumes. Series are always ascending by Timestamp.
type BalancePoint struct {
	Timestamp time.Time
	Balance   int64
}

// BalanceSample is one raw (wallet, time, balance) observation mirrored
// into the analytics store. Corresponds to balance_timeseries table in
// ClickHouse. Append-only.
type BalanceSample struct {
	Wallet      string
	TimestampMs int64 // unix milliseconds
	Balance     int64 // raw token amount, >= 0
}
