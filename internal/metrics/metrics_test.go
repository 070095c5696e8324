package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCall("brand_detect", OutcomeOK)
	m.ObserveRetry("brand_detect")
	m.InflightAdd(1)
	m.ObserveStage("ingest", time.Second)
	m.ObserveRun("complete")
}

func TestRegisterAndGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveCall("relevance", OutcomeOK)
	m.ObserveCall("relevance", OutcomeOK)
	m.ObserveCall("relevance", OutcomeTimeout)
	m.ObserveStage("seo", 20*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "kwresearch_capability_calls_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			var outcome string
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "outcome" {
					outcome = lp.GetValue()
				}
			}
			counts[outcome] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, counts[OutcomeOK])
	assert.Equal(t, 1.0, counts[OutcomeTimeout])

	_, err = New(reg)
	assert.Error(t, err, "registering twice must fail")
}
