// Package broadcaster fires synchronized capture rounds across the fleet.
package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/camsync/internal/domain"
	"github.com/djlord-it/camsync/internal/metrics"
	"github.com/djlord-it/camsync/internal/transport/udp"
	"github.com/djlord-it/camsync/internal/wire"
)

// ErrEmptyFleet is returned when TriggerAll is called with no nodes.
var ErrEmptyFleet = errors.New("no fleet nodes configured")

// Transport is the coordinator's side of the trigger/ack channel.
type Transport interface {
	SendTo(payload []byte, host string, port int) error
	ReceiveUntil(buf []byte, deadline time.Time) ([]byte, *net.UDPAddr, error)
}

// Store persists round history. Implementations must tolerate being
// called once per round plus once per node.
type Store interface {
	InsertRound(ctx context.Context, round domain.FleetRound) error
	InsertRoundResult(ctx context.Context, roundID uuid.UUID, node domain.NodeAddress, result domain.RoundResult) error
}

// AnalyticsSink records per-node outcomes as a best-effort side effect.
type AnalyticsSink interface {
	Record(ctx context.Context, node domain.NodeAddress, result domain.RoundResult)
}

// Config holds broadcaster configuration.
type Config struct {
	// AckWait extends the collection window past the shared target
	// instant, covering settle time, capture time and the return trip.
	AckWait time.Duration
}

// Broadcaster computes one shared target per round, sends identical
// trigger bytes to every node, and collects acks within a bounded window.
type Broadcaster struct {
	config    Config
	transport Transport
	store     Store         // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   metrics.Sink  // optional, nil = disabled
	clock     func() time.Time
}

// New creates a broadcaster.
func New(config Config, transport Transport) *Broadcaster {
	return &Broadcaster{
		config:    config,
		transport: transport,
		clock:     time.Now,
	}
}

// WithStore attaches a round history store.
func (b *Broadcaster) WithStore(store Store) *Broadcaster {
	b.store = store
	return b
}

// WithAnalytics attaches an analytics sink.
func (b *Broadcaster) WithAnalytics(sink AnalyticsSink) *Broadcaster {
	b.analytics = sink
	return b
}

// WithMetrics attaches a metrics sink.
func (b *Broadcaster) WithMetrics(sink metrics.Sink) *Broadcaster {
	b.metrics = sink
	return b
}

// TriggerAll fires one round: a single target timestamp shared by all
// nodes, identical bytes to each, then ack collection until the window
// closes. Every node ends with exactly one result; non-response is the
// Timeout status, never an error. The only error case is an empty fleet.
func (b *Broadcaster) TriggerAll(ctx context.Context, nodes []domain.NodeAddress, leadTime time.Duration, prefix string) (domain.FleetRound, error) {
	if len(nodes) == 0 {
		return domain.FleetRound{}, ErrEmptyFleet
	}

	now := b.clock()
	target := now.Add(leadTime)
	round := domain.FleetRound{
		ID:        uuid.New(),
		TargetAt:  target,
		Prefix:    prefix,
		Nodes:     nodes,
		Results:   make(map[domain.NodeAddress]domain.RoundResult, len(nodes)),
		StartedAt: now,
	}

	if b.metrics != nil {
		b.metrics.RoundStarted(len(nodes))
	}

	// Encode once so per-send latency cannot skew the shared target.
	payload := wire.EncodeTrigger(domain.TriggerMessage{ShootAt: &target, Prefix: prefix})

	for _, node := range nodes {
		if err := b.transport.SendTo(payload, node.Host, node.Port); err != nil {
			// The node simply never hears the trigger; it will surface
			// as a timeout like any other non-response.
			log.Printf("broadcaster: send to %s failed: %v", node, err)
			if b.metrics != nil {
				b.metrics.SendError()
			}
		}
	}
	log.Printf("broadcaster: round %s sent to %d nodes, target=%s, window=%s",
		round.ID, len(nodes), target.Format(time.RFC3339Nano), leadTime+b.config.AckWait)

	b.collect(&round, target.Add(b.config.AckWait))

	for _, node := range nodes {
		if _, ok := round.Results[node]; !ok {
			round.Results[node] = domain.RoundResult{Status: domain.RoundStatusTimeout}
		}
	}

	round.CompletedAt = b.clock()
	ok, failed, timedOut := round.Counts()
	if b.metrics != nil {
		b.metrics.RoundCompleted(round.CompletedAt.Sub(round.StartedAt), ok, failed, timedOut)
	}
	log.Printf("broadcaster: round %s complete (ok=%d, fail=%d, timeout=%d)", round.ID, ok, failed, timedOut)

	b.record(ctx, round)
	return round, nil
}

// collect reads acks until the deadline or until every node answered.
func (b *Broadcaster) collect(round *domain.FleetRound, deadline time.Time) {
	buf := make([]byte, udp.MaxDatagramSize)

	for len(round.Results) < len(round.Nodes) {
		payload, sender, err := b.transport.ReceiveUntil(buf, deadline)
		if err != nil {
			if !errors.Is(err, udp.ErrDeadline) {
				log.Printf("broadcaster: ack receive error: %v", err)
			}
			return
		}

		ack, err := wire.DecodeAck(payload)
		if err != nil {
			log.Printf("broadcaster: discarding datagram from %s: %v", sender, err)
			continue
		}

		node, ok := b.matchNode(round, sender)
		if !ok {
			log.Printf("broadcaster: ack from unknown or already-answered sender %s", sender)
			continue
		}

		status := domain.RoundStatusFail
		if ack.IsOK() {
			status = domain.RoundStatusOK
		}
		round.Results[node] = domain.RoundResult{
			Status:     status,
			Detail:     ack.Detail,
			ReceivedAt: b.clock(),
		}
		if b.metrics != nil {
			b.metrics.AckReceived(string(ack.Status))
		}
	}
}

// matchNode resolves an ack sender to a configured node that has not
// answered yet. Exact host:port wins; otherwise the first unanswered
// node on the sender's host (nodes ack from their trigger socket, but a
// relayed or NATed ack may carry a different source port).
func (b *Broadcaster) matchNode(round *domain.FleetRound, sender *net.UDPAddr) (domain.NodeAddress, bool) {
	host := sender.IP.String()

	exact := domain.NodeAddress{Host: host, Port: sender.Port}
	for _, node := range round.Nodes {
		if node == exact {
			if _, answered := round.Results[node]; !answered {
				return node, true
			}
			break
		}
	}
	for _, node := range round.Nodes {
		if node.Host != host {
			continue
		}
		if _, answered := round.Results[node]; !answered {
			return node, true
		}
	}
	return domain.NodeAddress{}, false
}

// record persists and reports the round. Failures are logged only; the
// round result already belongs to the caller.
func (b *Broadcaster) record(ctx context.Context, round domain.FleetRound) {
	if b.store != nil {
		if err := b.store.InsertRound(ctx, round); err != nil {
			log.Printf("broadcaster: failed to record round: %v", err)
		} else {
			for node, result := range round.Results {
				if err := b.store.InsertRoundResult(ctx, round.ID, node, result); err != nil {
					log.Printf("broadcaster: failed to record result for %s: %v", node, err)
				}
			}
		}
	}
	if b.analytics != nil {
		for node, result := range round.Results {
			b.analytics.Record(ctx, node, result)
		}
	}
}

// FormatResults renders a round's per-node outcomes for CLI output.
func FormatResults(round domain.FleetRound) string {
	out := ""
	for _, node := range round.Nodes {
		result := round.Results[node]
		line := fmt.Sprintf("%-21s %s", node.String(), result.Status)
		if result.Detail != "" {
			line += " " + result.Detail
		}
		out += line + "\n"
	}
	return out
}
