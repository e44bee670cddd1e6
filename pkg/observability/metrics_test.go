package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_ObserveRequestIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("/incentives/discover", "POST", "202", 50*time.Millisecond)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "incentive_discovery_http_requests_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			require.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	require.True(t, found, "expected requests_total metric to be registered")
}

func TestNewMetrics_ObserveErrorIncrementsByComponent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveError("router")
	m.ObserveError("router")
	m.ObserveError("discovery")

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var counts = map[string]float64{}
	for _, mf := range metricFamilies {
		if mf.GetName() != "incentive_discovery_errors_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			counts[labelValue(metric, "component")] = metric.GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(2), counts["router"])
	require.Equal(t, float64(1), counts["discovery"])
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}
