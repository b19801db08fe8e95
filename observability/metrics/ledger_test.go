package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	require.NotNil(t, out.GetCounter())
	return out.GetCounter().GetValue()
}

func TestLedgerCountersAccumulate(t *testing.T) {
	m := Ledger()
	require.Same(t, m, Ledger())

	claims := m.claims.WithLabelValues("rewardhub", "cross_chain")
	before := counterValue(t, claims)
	m.RecordClaim("rewardhub", "cross_chain")
	m.RecordClaim("rewardhub", "cross_chain")
	require.Equal(t, before+2, counterValue(t, claims))

	transfers := m.transfers.WithLabelValues("unknown")
	before = counterValue(t, transfers)
	m.RecordTransfer("")
	require.Equal(t, before+1, counterValue(t, transfers))

	sold := m.ticketsSold.WithLabelValues("4")
	before = counterValue(t, sold)
	m.RecordTicketsSold(4, 3)
	require.Equal(t, before+3, counterValue(t, sold))
}

func TestLedgerGaugesTrackLatest(t *testing.T) {
	m := Ledger()
	m.ObserveSnapshot(12)
	m.SetActivePeriod(3)

	var out dto.Metric
	require.NoError(t, m.snapshotID.Write(&out))
	require.Equal(t, float64(12), out.GetGauge().GetValue())
	require.NoError(t, m.activePeriod.Write(&out))
	require.Equal(t, float64(3), out.GetGauge().GetValue())
}

func TestNilLedgerIsNoop(t *testing.T) {
	var m *LedgerMetrics
	require.NotPanics(t, func() {
		m.RecordClaim("popa", "native")
		m.RecordOperation("staking", "stake", "ok")
		m.ObserveSnapshot(1)
		m.RecordVestingSlice(1)
	})
}
