package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Node metrics
	triggersTotal     prometheus.Counter
	decodeErrorsTotal prometheus.Counter
	waitOvershoot     prometheus.Histogram
	capturesTotal     *prometheus.CounterVec
	captureDuration   prometheus.Histogram
	acksSentTotal     *prometheus.CounterVec

	// Coordinator metrics
	roundsTotal       prometheus.Counter
	roundNodes        prometheus.Histogram
	roundDuration     prometheus.Histogram
	nodeResultsTotal  *prometheus.CounterVec
	acksReceivedTotal *prometheus.CounterVec
	sendErrorsTotal   prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register keep working as unregistered collectors.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initNodeMetrics(reg)
	s.initCoordinatorMetrics(reg)
	return s
}

func (s *PrometheusSink) initNodeMetrics(reg prometheus.Registerer) {
	s.triggersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camsync_node_triggers_received_total",
		Help: "Total number of valid trigger messages received.",
	})
	s.decodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camsync_node_decode_errors_total",
		Help: "Total number of malformed datagrams discarded.",
	})
	s.waitOvershoot = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camsync_node_wait_overshoot_seconds",
		Help:    "How far past the target instant the precision wait returned.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.05, 0.25, 1},
	})
	s.capturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_node_captures_total",
		Help: "Total number of capture attempts by outcome.",
	}, []string{"outcome"})
	s.captureDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camsync_node_capture_duration_seconds",
		Help:    "Capture tool invocation latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.acksSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_node_acks_sent_total",
		Help: "Total number of acks sent back to the coordinator.",
	}, []string{"outcome"})

	s.register(reg, s.triggersTotal, "camsync_node_triggers_received_total")
	s.register(reg, s.decodeErrorsTotal, "camsync_node_decode_errors_total")
	s.register(reg, s.waitOvershoot, "camsync_node_wait_overshoot_seconds")
	s.register(reg, s.capturesTotal, "camsync_node_captures_total")
	s.register(reg, s.captureDuration, "camsync_node_capture_duration_seconds")
	s.register(reg, s.acksSentTotal, "camsync_node_acks_sent_total")
}

func (s *PrometheusSink) initCoordinatorMetrics(reg prometheus.Registerer) {
	s.roundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camsync_fleet_rounds_total",
		Help: "Total number of trigger rounds started.",
	})
	s.roundNodes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camsync_fleet_round_nodes",
		Help:    "Number of nodes addressed per round.",
		Buckets: []float64{1, 2, 3, 5, 10, 25, 50},
	})
	s.roundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camsync_fleet_round_duration_seconds",
		Help:    "Duration of a round from send to collection close.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.nodeResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_fleet_node_results_total",
		Help: "Total per-node round results by status.",
	}, []string{"status"})
	s.acksReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_fleet_acks_received_total",
		Help: "Total number of acks received by outcome.",
	}, []string{"outcome"})
	s.sendErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camsync_fleet_send_errors_total",
		Help: "Total number of socket-level trigger send failures.",
	})

	s.register(reg, s.roundsTotal, "camsync_fleet_rounds_total")
	s.register(reg, s.roundNodes, "camsync_fleet_round_nodes")
	s.register(reg, s.roundDuration, "camsync_fleet_round_duration_seconds")
	s.register(reg, s.nodeResultsTotal, "camsync_fleet_node_results_total")
	s.register(reg, s.acksReceivedTotal, "camsync_fleet_acks_received_total")
	s.register(reg, s.sendErrorsTotal, "camsync_fleet_send_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Node metrics implementation

func (s *PrometheusSink) TriggerReceived() {
	s.triggersTotal.Inc()
}

func (s *PrometheusSink) DecodeErrorInc() {
	s.decodeErrorsTotal.Inc()
}

func (s *PrometheusSink) WaitOvershoot(overshoot time.Duration) {
	d := overshoot.Seconds()
	if d < 0 {
		d = 0
	}
	s.waitOvershoot.Observe(d)
}

func (s *PrometheusSink) CaptureCompleted(outcome string, duration time.Duration) {
	s.capturesTotal.WithLabelValues(outcome).Inc()
	s.captureDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) AckSent(outcome string) {
	s.acksSentTotal.WithLabelValues(outcome).Inc()
}

// Coordinator metrics implementation

func (s *PrometheusSink) RoundStarted(nodes int) {
	s.roundsTotal.Inc()
	s.roundNodes.Observe(float64(nodes))
}

func (s *PrometheusSink) RoundCompleted(duration time.Duration, ok, failed, timedOut int) {
	s.roundDuration.Observe(duration.Seconds())
	s.nodeResultsTotal.WithLabelValues(OutcomeOK).Add(float64(ok))
	s.nodeResultsTotal.WithLabelValues(OutcomeFail).Add(float64(failed))
	s.nodeResultsTotal.WithLabelValues(OutcomeTimeout).Add(float64(timedOut))
}

func (s *PrometheusSink) AckReceived(outcome string) {
	s.acksReceivedTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) SendError() {
	s.sendErrorsTotal.Inc()
}
