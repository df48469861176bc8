package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	IncSettlement("ignored")

	Init()
	Init()

	IncSettlement("farmer")
	IncSettlement("farmer")
	assert.InDelta(t, 2, counterValue(t, "mandi_settlements_total", map[string]string{"side": "farmer"}), 1e-9)

	IncExport("pdf", errors.New("boom"))
	assert.InDelta(t, 1, counterValue(t, "mandi_exports_total", map[string]string{"format": "pdf", "result": ResultError}), 1e-9)

	ObserveHTTP("GET", "", 200, time.Millisecond)
	assert.InDelta(t, 1, counterValue(t, "mandi_http_requests_total", map[string]string{"route": "unmatched"}), 1e-9)

	ObserveBillingReport(true, nil, 0)
	assert.InDelta(t, 1, counterValue(t, "mandi_billing_reports_total", map[string]string{"cache": "hit"}), 1e-9)
}
