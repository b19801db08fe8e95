package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks activity of the native ledgers.
type LedgerMetrics struct {
	transfers     *prometheus.CounterVec
	operations    *prometheus.CounterVec
	claims        *prometheus.CounterVec
	snapshotID    prometheus.Gauge
	ticketsSold   *prometheus.CounterVec
	activePeriod  prometheus.Gauge
	vestingSlices *prometheus.CounterVec
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the lazily registered ledger metrics.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "zizy_asset_transfers_total",
				Help: "Count of asset movements by asset kind.",
			}, []string{"kind"}),
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "zizy_ledger_operations_total",
				Help: "Mutating ledger operations segmented by module, operation and outcome.",
			}, []string{"module", "operation", "outcome"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "zizy_reward_claims_total",
				Help: "Reward claims by module and settlement route.",
			}, []string{"module", "route"}),
			snapshotID: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "zizy_staking_snapshot_id",
				Help: "Latest staking snapshot id.",
			}),
			ticketsSold: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "zizy_competition_tickets_sold_total",
				Help: "Tickets bought per period.",
			}, []string{"period"}),
			activePeriod: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "zizy_competition_active_period",
				Help: "Currently active competition period id.",
			}),
			vestingSlices: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "zizy_vesting_slices_claimed_total",
				Help: "Vesting slices claimed per reward id.",
			}, []string{"reward"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transfers,
			ledgerRegistry.operations,
			ledgerRegistry.claims,
			ledgerRegistry.snapshotID,
			ledgerRegistry.ticketsSold,
			ledgerRegistry.activePeriod,
			ledgerRegistry.vestingSlices,
		)
	})
	return ledgerRegistry
}

func (m *LedgerMetrics) RecordTransfer(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.transfers.WithLabelValues(kind).Inc()
}

// RecordOperation counts a facade operation. Outcome is "ok" or "error".
func (m *LedgerMetrics) RecordOperation(module, operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(module, operation, outcome).Inc()
}

func (m *LedgerMetrics) RecordClaim(module, route string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(module, route).Inc()
}

func (m *LedgerMetrics) ObserveSnapshot(id uint64) {
	if m == nil {
		return
	}
	m.snapshotID.Set(float64(id))
}

func (m *LedgerMetrics) RecordTicketsSold(periodID, count uint64) {
	if m == nil {
		return
	}
	m.ticketsSold.WithLabelValues(strconv.FormatUint(periodID, 10)).Add(float64(count))
}

func (m *LedgerMetrics) SetActivePeriod(periodID uint64) {
	if m == nil {
		return
	}
	m.activePeriod.Set(float64(periodID))
}

func (m *LedgerMetrics) RecordVestingSlice(rewardID uint64) {
	if m == nil {
		return
	}
	m.vestingSlices.WithLabelValues(strconv.FormatUint(rewardID, 10)).Inc()
}
