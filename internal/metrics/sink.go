package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Node metrics
	TriggerReceived()
	DecodeErrorInc()
	WaitOvershoot(overshoot time.Duration)
	CaptureCompleted(outcome string, duration time.Duration)
	AckSent(outcome string)

	// Coordinator metrics
	RoundStarted(nodes int)
	RoundCompleted(duration time.Duration, ok, failed, timedOut int)
	AckReceived(outcome string)
	SendError()
}

// Outcome constants for CaptureCompleted, AckSent and AckReceived.
const (
	OutcomeOK      = "ok"
	OutcomeFail    = "fail"
	OutcomeTimeout = "timeout"
)
