// Package scheduler runs the engine's batch jobs: nightly rescoring and
// priority sweeps, follow-up reminder digests, stale-lead reporting, the
// hourly insights digest, cart cleanup, and scheduled campaign dispatch.
// Jobs are registered by name and driven by asynq periodic tasks.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"leadflow_backend/platform/logger"
)

// JobFunc is one batch job. It returns the number of items it processed.
type JobFunc func(ctx context.Context) (int, error)

// Registry holds the named jobs and runs them with panic containment and
// uniform start/end logging. A failing job never affects the others; asynq
// retries are driven by the returned error.
type Registry struct {
	jobs map[string]JobFunc
	log  *logger.Logger
	now  func() time.Time
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		jobs: make(map[string]JobFunc),
		log:  log,
		now:  time.Now,
	}
}

// WithClock overrides the registry clock. Tests only.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Register adds a named job. Registering the same name twice is a wiring
// bug and panics at startup.
func (r *Registry) Register(name string, job JobFunc) {
	if _, exists := r.jobs[name]; exists {
		panic("scheduler: duplicate job " + name)
	}
	r.jobs[name] = job
}

// Names returns the registered job names sorted for stable iteration.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one job by name, converting panics into errors so a broken
// job cannot take down the worker.
func (r *Registry) Run(ctx context.Context, name string) (err error) {
	job, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}

	started := r.now()
	r.log.JobStart(name)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", name, rec)
		}
		if err != nil {
			r.log.JobFailed(name, err)
		}
	}()

	processed, err := job(ctx)
	if err != nil {
		return err
	}

	r.log.JobEnd(name, processed, r.now().Sub(started))
	return nil
}
