// Package schedule fires recurring trigger rounds for time-lapse work.
package schedule

import (
	"context"
	"log"
	"time"

	"github.com/djlord-it/camsync/internal/domain"
)

// Trigger fires one fleet round.
type Trigger interface {
	TriggerAll(ctx context.Context, nodes []domain.NodeAddress, leadTime time.Duration, prefix string) (domain.FleetRound, error)
}

// Config holds scheduler configuration.
type Config struct {
	Expression string
	Timezone   string

	Nodes    []domain.NodeAddress
	LeadTime time.Duration
	Prefix   string
}

// Scheduler fires a fleet round at every instant the cron expression
// matches, until its context is cancelled.
type Scheduler struct {
	config   Config
	schedule Schedule
	trigger  Trigger
	clock    func() time.Time
}

// New parses the expression eagerly so a bad config fails at startup.
func New(config Config, trigger Trigger) (*Scheduler, error) {
	sched, err := NewParser().Parse(config.Expression, config.Timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		config:   config,
		schedule: sched,
		trigger:  trigger,
		clock:    time.Now,
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("schedule: started (expression=%q, nodes=%d, lead=%s)",
		s.config.Expression, len(s.config.Nodes), s.config.LeadTime)

	for {
		now := s.clock()
		next := s.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			log.Println("schedule: stopped")
			return ctx.Err()
		case <-timer.C:
			round, err := s.trigger.TriggerAll(ctx, s.config.Nodes, s.config.LeadTime, s.config.Prefix)
			if err != nil {
				log.Printf("schedule: round error: %v", err)
				continue
			}
			ok, failed, timedOut := round.Counts()
			log.Printf("schedule: fired round %s (ok=%d, fail=%d, timeout=%d)", round.ID, ok, failed, timedOut)
		}
	}
}
