package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/camsync/internal/domain"
)

// DefaultRetention is how long outcome counters are kept.
const DefaultRetention = 30 * 24 * time.Hour

// RedisSink keeps hourly per-node outcome counters, giving a cheap view
// of fleet health over time without a database.
type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	clock     func() time.Time
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{
		client:    client,
		retention: DefaultRetention,
		clock:     time.Now,
	}
}

// WithRetention overrides the counter expiry.
func (s *RedisSink) WithRetention(d time.Duration) *RedisSink {
	if d > 0 {
		s.retention = d
	}
	return s
}

// Record bumps the counter for one node outcome. Best-effort: errors are
// logged and never affect the round.
func (s *RedisSink) Record(ctx context.Context, node domain.NodeAddress, result domain.RoundResult) {
	at := result.ReceivedAt
	if at.IsZero() {
		// Timeouts carry no receive time; bucket them at collection close.
		at = s.clock()
	}
	key := buildKey(node, result.Status, at)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

// buildKey buckets counters by hour: node:<host:port>:<status>:<yyyymmddhh>.
func buildKey(node domain.NodeAddress, status domain.RoundStatus, t time.Time) string {
	return fmt.Sprintf("node:%s:%s:%s", node.String(), status, t.UTC().Format("2006010215"))
}
