package cron

import (
	"context"
	"fmt"
)

// Job is one compensating task executed by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order, keyed by unique name.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry builds a registry preloaded with jobs. Nil entries and
// duplicate names are dropped.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		_ = registry.Register(job)
	}
	return registry
}

// Register appends job. A second job with the same name is rejected.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("cron job is nil")
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	name := job.Name()
	if _, exists := r.names[name]; exists {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
