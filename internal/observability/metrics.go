// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the rewards engine.
type Metrics struct {
	// Distribution metrics
	DistributionsExecuted *prometheus.CounterVec // by trigger type
	DistributionsSkipped  *prometheus.CounterVec // by reason
	DistributionConflicts prometheus.Counter
	AmountDistributed     prometheus.Counter
	RecipientsPerRun      prometheus.Histogram
	DustPerRun            prometheus.Histogram

	// Computation metrics
	HashPowerComputeDuration prometheus.Histogram
	EligibleWallets          prometheus.Gauge

	// Streak metrics
	TierUpgrades   prometheus.Counter
	SellsProcessed prometheus.Counter

	// Snapshot metrics
	SnapshotsTaken   prometheus.Counter
	SnapshotsSkipped prometheus.Counter
	HoldersObserved  prometheus.Gauge

	// Lock metrics
	LockAcquireFailures prometheus.Counter

	// Price feed metrics
	PriceFeedFailures prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "copper_rewards"
	}

	return &Metrics{
		DistributionsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "executed_total",
			Help:      "Distributions executed, by trigger type",
		}, []string{"trigger"}),
		DistributionsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "skipped_total",
			Help:      "Distribution runs skipped, by reason",
		}, []string{"reason"}),
		DistributionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "conflicts_total",
			Help:      "Runs rejected because another allocation held the lock",
		}),
		AmountDistributed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "amount_total",
			Help:      "Raw token amount distributed across all runs",
		}),
		RecipientsPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "recipients",
			Help:      "Recipients per executed distribution",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		DustPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "dust",
			Help:      "Undistributed floor-rounding remainder per run (raw units)",
			Buckets:   prometheus.ExponentialBuckets(1, 8, 8),
		}),
		HashPowerComputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hashpower",
			Name:      "compute_seconds",
			Help:      "Duration of batch hash power computation",
			Buckets:   prometheus.DefBuckets,
		}),
		EligibleWallets: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hashpower",
			Name:      "eligible_wallets",
			Help:      "Wallets above the eligibility floor in the last run",
		}),
		TierUpgrades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streak",
			Name:      "tier_upgrades_total",
			Help:      "Tier upgrades applied",
		}),
		SellsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streak",
			Name:      "sells_processed_total",
			Help:      "Sell signals applied to streaks",
		}),
		SnapshotsTaken: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "taken_total",
			Help:      "Balance snapshots recorded",
		}),
		SnapshotsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "skipped_total",
			Help:      "Snapshot passes skipped by the cadence roll",
		}),
		HoldersObserved: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "holders",
			Help:      "Holders included in the last snapshot",
		}),
		LockAcquireFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "acquire_failures_total",
			Help:      "Execution lock acquisitions refused",
		}),
		PriceFeedFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "failures_total",
			Help:      "Price feed fetches that fell back to cache or zero",
		}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
