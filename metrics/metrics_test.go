package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewClientMetricsRegistersAndIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.RequestsSent.Inc()
	m.Retransmits.Inc()
	m.Retransmits.Inc()

	if v := counterValue(t, m.RequestsSent); v != 1 {
		t.Fatalf("expected RequestsSent=1, got %v", v)
	}
	if v := counterValue(t, m.Retransmits); v != 2 {
		t.Fatalf("expected Retransmits=2, got %v", v)
	}
}

func TestNewServerMetricsRegistersAndIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)

	m.DedupHits.Inc()

	if v := counterValue(t, m.DedupHits); v != 1 {
		t.Fatalf("expected DedupHits=1, got %v", v)
	}
}
