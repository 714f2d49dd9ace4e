package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TriggerReceived()                                         {}
func (n *NoopSink) DecodeErrorInc()                                          {}
func (n *NoopSink) WaitOvershoot(overshoot time.Duration)                    {}
func (n *NoopSink) CaptureCompleted(outcome string, duration time.Duration)  {}
func (n *NoopSink) AckSent(outcome string)                                   {}
func (n *NoopSink) RoundStarted(nodes int)                                   {}
func (n *NoopSink) RoundCompleted(d time.Duration, ok, failed, timedOut int) {}
func (n *NoopSink) AckReceived(outcome string)                               {}
func (n *NoopSink) SendError()                                               {}
