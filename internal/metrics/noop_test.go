package metrics

import (
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.TriggerReceived()
	s.DecodeErrorInc()
	s.WaitOvershoot(500 * time.Microsecond)
	s.CaptureCompleted(OutcomeOK, 800*time.Millisecond)
	s.CaptureCompleted(OutcomeFail, 0)
	s.AckSent(OutcomeOK)

	s.RoundStarted(3)
	s.RoundCompleted(2*time.Second, 2, 0, 1)
	s.AckReceived(OutcomeFail)
	s.SendError()
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
