package cron

import (
	"context"
	"fmt"
)

// Job is one scheduled task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order. Names are unique.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Only narrows the registry to the named jobs, keeping registration order.
func (r *Registry) Only(names ...string) (*Registry, error) {
	want := map[string]bool{}
	for _, n := range names {
		if _, ok := r.names[n]; !ok {
			return nil, fmt.Errorf("unknown job %q", n)
		}
		want[n] = true
	}
	out := &Registry{names: map[string]struct{}{}}
	for _, job := range r.jobs {
		if want[job.Name()] {
			_ = out.Register(job)
		}
	}
	return out, nil
}
