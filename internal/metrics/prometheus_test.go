package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	return sink, reg
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if matchLabels(m.GetLabel(), labels) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

func TestPrometheusSink_NodeCounters(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.TriggerReceived()
	sink.TriggerReceived()
	sink.DecodeErrorInc()
	sink.CaptureCompleted(OutcomeOK, 800*time.Millisecond)
	sink.CaptureCompleted(OutcomeFail, 100*time.Millisecond)
	sink.AckSent(OutcomeOK)

	if got := getCounterValue(t, reg, "camsync_node_triggers_received_total"); got != 2 {
		t.Errorf("triggers_received_total = %v, want 2", got)
	}
	if got := getCounterValue(t, reg, "camsync_node_decode_errors_total"); got != 1 {
		t.Errorf("decode_errors_total = %v, want 1", got)
	}
	if got := getCounterVecValue(t, reg, "camsync_node_captures_total", map[string]string{"outcome": OutcomeOK}); got != 1 {
		t.Errorf("captures_total{ok} = %v, want 1", got)
	}
	if got := getCounterVecValue(t, reg, "camsync_node_captures_total", map[string]string{"outcome": OutcomeFail}); got != 1 {
		t.Errorf("captures_total{fail} = %v, want 1", got)
	}
	if got := getCounterVecValue(t, reg, "camsync_node_acks_sent_total", map[string]string{"outcome": OutcomeOK}); got != 1 {
		t.Errorf("acks_sent_total{ok} = %v, want 1", got)
	}
}

func TestPrometheusSink_RoundCompletedSplitsStatuses(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.RoundStarted(3)
	sink.RoundCompleted(2*time.Second, 1, 1, 1)

	if got := getCounterValue(t, reg, "camsync_fleet_rounds_total"); got != 1 {
		t.Errorf("rounds_total = %v, want 1", got)
	}
	for _, status := range []string{OutcomeOK, OutcomeFail, OutcomeTimeout} {
		if got := getCounterVecValue(t, reg, "camsync_fleet_node_results_total", map[string]string{"status": status}); got != 1 {
			t.Errorf("node_results_total{%s} = %v, want 1", status, got)
		}
	}
}

func TestPrometheusSink_DoubleRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg)
	// Second sink on the same registry hits AlreadyRegisteredError for
	// every collector; it must only log.
	NewPrometheusSink(reg)
}

// Verify PrometheusSink implements Sink interface.
var _ Sink = (*PrometheusSink)(nil)
