// Package scheduler runs the bridge's periodic housekeeping on cron specs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
)

// Reaper closes sessions idle for longer than maxIdle.
type Reaper interface {
	Reap(maxIdle time.Duration) int
}

// Pruner deletes logged messages received before cutoff.
type Pruner interface {
	PruneMessages(cutoff time.Time) (int64, error)
}

type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers fn under name, replacing any job with the same name.
func (s *Scheduler) Add(name, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("invalid cron %q for job %q: %w", spec, name, err)
	}
	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
	}
	s.entries[name] = id
	return nil
}

// Jobs returns the registered job names with their next run time.
func (s *Scheduler) Jobs() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("scheduler started with %d job(s)", len(s.Jobs()))
}

// Stop halts the scheduler and waits for running jobs up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("scheduler: stop: %v", ctx.Err())
	}
}

// ReapSessions returns a job that closes idle sessions.
func ReapSessions(r Reaper, maxIdle time.Duration) func() {
	return func() {
		if n := r.Reap(maxIdle); n > 0 {
			log.Printf("scheduler: reaped %d idle session(s)", n)
		}
	}
}

// PruneMessages returns a job that deletes messages older than retention.
func PruneMessages(p Pruner, retention time.Duration, now func() time.Time) func() {
	return func() {
		cutoff := now().Add(-retention)
		n, err := p.PruneMessages(cutoff)
		if err != nil {
			log.Printf("scheduler: pruning messages: %v", err)
			return
		}
		if n > 0 {
			log.Printf("scheduler: pruned %d message(s) received before %s", n, humanize.Time(cutoff))
		}
	}
}
