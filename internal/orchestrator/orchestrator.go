// Package orchestrator runs a node's receive-wait-capture-report loop.
//
// Exactly one trigger is in flight at a time: the loop fully processes a
// message before receiving the next, and anything arriving meanwhile
// queues in the socket's receive buffer. There is no cancellation of an
// in-flight capture; once a trigger is accepted the node commits to it.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/camsync/internal/camera"
	"github.com/djlord-it/camsync/internal/domain"
	"github.com/djlord-it/camsync/internal/metrics"
	"github.com/djlord-it/camsync/internal/timing"
	"github.com/djlord-it/camsync/internal/transport/udp"
	"github.com/djlord-it/camsync/internal/wire"
)

// State is the orchestrator's current position in the capture cycle.
type State string

const (
	StateIdle      State = "idle"
	StateWaiting   State = "waiting"
	StateSettling  State = "settling"
	StateCapturing State = "capturing"
	StateReporting State = "reporting"
)

// Transport is the node's side of the trigger/ack channel.
type Transport interface {
	Receive(buf []byte) ([]byte, *net.UDPAddr, error)
	SendTo(payload []byte, host string, port int) error
}

// Config holds orchestrator configuration.
type Config struct {
	AckPort         int
	AckEnabled      bool
	DefaultLeadTime time.Duration
	SettleDuration  time.Duration
	SaveDir         string
	DefaultPrefix   string

	CaptureWidth   int
	CaptureHeight  int
	CaptureQuality int
}

// Orchestrator is the per-node capture state machine.
type Orchestrator struct {
	config    Config
	transport Transport
	waiter    timing.Waiter
	capturer  camera.Capturer
	metrics   metrics.Sink // optional, nil = disabled
	clock     func() time.Time
	sleep     func(time.Duration)

	mu    sync.Mutex
	state State
}

// New creates an orchestrator in the Idle state.
func New(config Config, transport Transport, waiter timing.Waiter, capturer camera.Capturer) *Orchestrator {
	return &Orchestrator{
		config:    config,
		transport: transport,
		waiter:    waiter,
		capturer:  capturer,
		clock:     time.Now,
		sleep:     time.Sleep,
		state:     StateIdle,
	}
}

// WithMetrics attaches a metrics sink to the orchestrator.
func (o *Orchestrator) WithMetrics(sink metrics.Sink) *Orchestrator {
	o.metrics = sink
	return o
}

// State returns the current state. Safe for concurrent use; intended for
// status reporting and tests.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run processes triggers until the transport is closed or ctx is
// cancelled. Cancellation takes effect between triggers: the caller
// unblocks a pending receive by closing the transport.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Printf("orchestrator: listening (ack_port=%d, ack_enabled=%v, save_dir=%s)",
		o.config.AckPort, o.config.AckEnabled, o.config.SaveDir)

	buf := make([]byte, udp.MaxDatagramSize)
	for {
		if err := ctx.Err(); err != nil {
			log.Println("orchestrator: stopped")
			return err
		}

		payload, sender, err := o.transport.Receive(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Println("orchestrator: stopped")
				return err
			}
			// A single bad read must not kill the loop.
			log.Printf("orchestrator: receive error: %v", err)
			continue
		}

		o.handle(ctx, payload, sender)
	}
}

// handle drives one trigger through the full state cycle.
func (o *Orchestrator) handle(ctx context.Context, payload []byte, sender *net.UDPAddr) {
	msg, err := wire.DecodeTrigger(payload)
	if err != nil {
		if o.metrics != nil {
			o.metrics.DecodeErrorInc()
		}
		log.Printf("orchestrator: discarding datagram from %s: %v", sender, err)
		return
	}
	if o.metrics != nil {
		o.metrics.TriggerReceived()
	}

	now := o.clock()
	prefix := msg.Prefix
	if prefix == "" {
		prefix = o.config.DefaultPrefix
	}
	attempt := domain.CaptureAttempt{
		ID:         uuid.New(),
		ReceivedAt: now,
		Target:     msg.Target(now, o.config.DefaultLeadTime),
		Prefix:     prefix,
	}

	log.Printf("orchestrator: trigger from %s, shoot in %s, prefix=%s",
		sender.IP, attempt.Target.Sub(now).Round(time.Millisecond), prefix)

	o.setState(StateWaiting)
	o.waiter.WaitUntil(attempt.Target)
	if o.metrics != nil {
		o.metrics.WaitOvershoot(o.clock().Sub(attempt.Target))
	}

	o.setState(StateSettling)
	if o.config.SettleDuration > 0 {
		// Unconditional pause for AE/AWB convergence before the shutter.
		o.sleep(o.config.SettleDuration)
	}

	o.setState(StateCapturing)
	result := o.capturer.Capture(ctx, camera.Request{
		OutputPath: camera.Filename(o.config.SaveDir, prefix, o.clock()),
		Width:      o.config.CaptureWidth,
		Height:     o.config.CaptureHeight,
		Quality:    o.config.CaptureQuality,
	})

	if result.IsSuccess() {
		attempt.Outcome = domain.AckOK(filepath.Base(result.Path))
		log.Printf("orchestrator: captured %s", result.Path)
	} else {
		attempt.Outcome = domain.AckFail(result.ErrorText())
		log.Printf("orchestrator: capture failed: %v", result.Err)
	}
	if o.metrics != nil {
		o.metrics.CaptureCompleted(string(attempt.Outcome.Status), result.Duration)
	}

	o.setState(StateReporting)
	o.report(attempt, sender)
	o.setState(StateIdle)
}

// report sends the outcome ack to the trigger's sender. Send failures are
// logged only; the loop stays healthy.
func (o *Orchestrator) report(attempt domain.CaptureAttempt, sender *net.UDPAddr) {
	if !o.config.AckEnabled {
		return
	}
	if err := o.transport.SendTo(wire.EncodeAck(attempt.Outcome), sender.IP.String(), o.config.AckPort); err != nil {
		log.Printf("orchestrator: ack send error: %v", err)
		return
	}
	if o.metrics != nil {
		o.metrics.AckSent(string(attempt.Outcome.Status))
	}
}
