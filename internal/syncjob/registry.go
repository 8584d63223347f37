// Package syncjob drives sync runs against external sources and tracks
// their progress.
package syncjob

import (
	"sort"
	"sync"
	"time"

	"govpulse/internal/domain"
)

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is the process-lifetime status record for one sync run. Never
// persisted; readers get copies.
type Job struct {
	ID         string                      `json:"id"`
	Source     string                      `json:"source"`
	State      State                       `json:"state"`
	Progress   int                         `json:"progress"`
	Message    string                      `json:"message,omitempty"`
	Report     domain.ReconciliationReport `json:"report"`
	StartedAt  string                      `json:"started_at" format:"date-time"`
	FinishedAt string                      `json:"finished_at,omitempty" format:"date-time"`
}

// Registry is the concurrency-safe job map. Constructed once at process
// start and injected wherever job state is read; the orchestrator is the
// only writer per job.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*Job{}, now: time.Now}
}

func (r *Registry) put(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// update applies fn to a job under the lock.
func (r *Registry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

// Get returns a snapshot copy of one job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshot copies of all jobs, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		res = append(res, *job)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartedAt > res[j].StartedAt })
	return res
}
