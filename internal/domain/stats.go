package domain

import "time"

// SystemStats is the single cached row of global aggregates.
// Corresponds to system_stats table (id fixed at 1). The distributed
// total is maintained with an atomic increment alongside each
// distribution insert, never read-modify-write.
type SystemStats struct {
	TotalHolders       int
	TotalDistributed   int64 // raw token amount over all distributions
	LastSnapshotAt     *time.Time
	LastDistributionAt *time.Time
	UpdatedAt          time.Time
}
