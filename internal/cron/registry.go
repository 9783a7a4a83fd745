package cron

import (
	"context"
	"fmt"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with its cadence.
type Entry struct {
	Job      Job
	Interval time.Duration
}

// Registry tracks registered cron jobs, unique by name.
type Registry struct {
	entries []Entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds a job that runs every interval. A non-positive interval
// uses the service default.
func (r *Registry) Register(job Job, interval time.Duration) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, Entry{Job: job, Interval: interval})
	return nil
}

// Entries returns the registered jobs in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
