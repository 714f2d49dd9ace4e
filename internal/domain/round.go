package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoundStatus string

const (
	RoundStatusOK      RoundStatus = "ok"
	RoundStatusFail    RoundStatus = "fail"
	RoundStatusTimeout RoundStatus = "timeout"
)

// RoundResult is one node's outcome within a fleet round. Timeout means
// no ack arrived before the collection window closed; it is a normal
// result, not an error.
type RoundResult struct {
	Status     RoundStatus
	Detail     string // artifact name or error text; empty on timeout
	ReceivedAt time.Time
}

// FleetRound is the coordinator-side record of one trigger invocation:
// the shared target instant, the nodes addressed, and each node's result.
type FleetRound struct {
	ID       uuid.UUID
	TargetAt time.Time
	Prefix   string
	Nodes    []NodeAddress
	Results  map[NodeAddress]RoundResult

	StartedAt   time.Time
	CompletedAt time.Time
}

// Counts tallies results by status.
func (r FleetRound) Counts() (ok, failed, timedOut int) {
	for _, res := range r.Results {
		switch res.Status {
		case RoundStatusOK:
			ok++
		case RoundStatusFail:
			failed++
		case RoundStatusTimeout:
			timedOut++
		}
	}
	return ok, failed, timedOut
}
