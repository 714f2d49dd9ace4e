// Package sweeper prunes old capture artifacts so a long-running node
// does not fill its card. It runs beside the capture loop and only ever
// touches the artifact directory.
package sweeper

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Config holds sweeper configuration.
type Config struct {
	// Dir is the capture output directory to prune.
	Dir string

	// Interval is how often the sweeper runs.
	// Default: 1 hour.
	Interval time.Duration

	// MaxAge is the age past which an artifact is deleted.
	// Default: 7 days.
	MaxAge time.Duration

	// BatchSize is the maximum number of deletions per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  time.Hour,
		MaxAge:    7 * 24 * time.Hour,
		BatchSize: 100,
	}
}

// Sweeper deletes artifacts older than MaxAge.
type Sweeper struct {
	config Config
	clock  func() time.Time
}

// New creates a new Sweeper.
func New(config Config) *Sweeper {
	return &Sweeper{config: config, clock: time.Now}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Printf("sweeper: started (interval=%s, max_age=%s, batch=%d)",
		s.config.Interval, s.config.MaxAge, s.config.BatchSize)

	// Run immediately on startup, then on ticker
	s.runCycle()

	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

// runCycle executes one sweep cycle.
func (s *Sweeper) runCycle() {
	cutoff := s.clock().Add(-s.config.MaxAge)

	paths, err := filepath.Glob(filepath.Join(s.config.Dir, "*.jpg"))
	if err != nil {
		log.Printf("sweeper: scan failed: %v", err)
		return
	}

	deleted := 0
	for _, path := range paths {
		if deleted >= s.config.BatchSize {
			log.Printf("sweeper: batch limit reached, %d deleted", deleted)
			return
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Printf("sweeper: failed to remove %s: %v", path, err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Printf("sweeper: removed %d artifacts older than %s", deleted, s.config.MaxAge)
	}
}
