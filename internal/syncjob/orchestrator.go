package syncjob

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"govpulse/internal/adapter"
	"govpulse/internal/domain"
	"govpulse/internal/reconcile"
)

// ErrSyncBusy rejects a start request while a run for the same source is
// in flight. Callers get it synchronously, nothing is queued.
var ErrSyncBusy = errors.New("sync already running for this source")

var ErrUnknownSource = errors.New("unknown source")

// Orchestrator runs one sync at a time per source type. Distinct sources
// may run in parallel.
type Orchestrator struct {
	Engine    reconcile.Engine
	Registry  *Registry
	Sources   map[string]adapter.Source
	BatchSize int
	Logger    *log.Logger
	Now       func() time.Time

	mu      sync.Mutex
	running map[string]bool
	stops   map[string]chan struct{}
}

func NewOrchestrator(engine reconcile.Engine, registry *Registry, sources map[string]adapter.Source, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		Engine:    engine,
		Registry:  registry,
		Sources:   sources,
		BatchSize: 50,
		Logger:    logger,
		Now:       time.Now,
		running:   map[string]bool{},
		stops:     map[string]chan struct{}{},
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Start launches a sync run for one source in the background and returns
// its job id immediately.
func (o *Orchestrator) Start(ctx context.Context, sourceName string) (string, error) {
	jobID, done, err := o.begin(sourceName)
	if err != nil {
		return "", err
	}
	go func() {
		defer close(done)
		o.run(jobID, sourceName)
	}()
	return jobID, nil
}

// begin acquires the per-source single-flight slot and registers the job.
func (o *Orchestrator) begin(sourceName string) (string, chan struct{}, error) {
	if _, ok := o.Sources[sourceName]; !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[sourceName] {
		return "", nil, fmt.Errorf("%w: %s", ErrSyncBusy, sourceName)
	}
	o.running[sourceName] = true
	jobID := uuid.New().String()
	stop := make(chan struct{})
	o.stops[jobID] = stop
	o.Registry.put(&Job{
		ID:        jobID,
		Source:    sourceName,
		State:     StateRunning,
		Progress:  0,
		StartedAt: o.now().UTC().Format(time.RFC3339),
	})
	done := make(chan struct{})
	return jobID, done, nil
}

// Stop asks a running job to halt at the next batch boundary. In-flight
// item writes complete first.
func (o *Orchestrator) Stop(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	stop, ok := o.stops[jobID]
	if !ok {
		return fmt.Errorf("no running job %s", jobID)
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	return nil
}

func (o *Orchestrator) release(sourceName, jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, sourceName)
	delete(o.stops, jobID)
}

func (o *Orchestrator) stopChan(jobID string) chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stops[jobID]
}

// run executes one sync. Never panics outward: the scheduler that re-arms
// the timer must survive any single run's failure.
func (o *Orchestrator) run(jobID, sourceName string) {
	defer o.release(sourceName, jobID)
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Printf("sync %s: panic: %v", sourceName, r)
			o.fail(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := context.Background()
	src := o.Sources[sourceName]
	stop := o.stopChan(jobID)

	if err := src.Authenticate(ctx); err != nil {
		o.fail(jobID, fmt.Sprintf("authentication failed: %v", err))
		return
	}
	projects, err := src.ListProjects(ctx)
	if err != nil {
		o.fail(jobID, fmt.Sprintf("list projects: %v", err))
		return
	}

	var report domain.ReconciliationReport
	report.Source = sourceName

	// Fetch all items up front so progress can be proportional to
	// batches processed. Records the adapter could not normalize are
	// carried into the report as skipped, not run failures.
	var batches [][]domain.NormalizedWorkItem
	for _, p := range projects {
		items, skipped, err := src.ListWorkItems(ctx, p.Key)
		if err != nil {
			o.fail(jobID, fmt.Sprintf("list work items for %s: %v", p.Key, err))
			return
		}
		report.Failures = append(report.Failures, skipped...)
		for _, batch := range chunk(items, o.BatchSize) {
			batches = append(batches, batch)
		}
	}
	for i, batch := range batches {
		select {
		case <-stop:
			o.complete(jobID, report, fmt.Sprintf("stopped after %d/%d batches", i, len(batches)))
			return
		default:
		}
		batchReport, err := o.Engine.ReconcileBatch(ctx, sourceName, batch)
		if err != nil {
			o.fail(jobID, fmt.Sprintf("reconcile batch %d: %v", i+1, err))
			return
		}
		report.Merge(batchReport)
		progress := (i + 1) * 100 / len(batches)
		o.Registry.update(jobID, func(j *Job) {
			j.Progress = progress
			j.Report = report
		})
	}

	if _, err := o.Engine.SyncEscalations(ctx); err != nil {
		o.Logger.Printf("sync %s: escalation pass: %v", sourceName, err)
	}
	o.complete(jobID, report, summarize(report))
}

func summarize(r domain.ReconciliationReport) string {
	msg := fmt.Sprintf("created %d, updated %d, unchanged %d, movements %d", r.Created, r.Updated, r.Unchanged, r.Movements)
	if len(r.Failures) > 0 {
		msg += fmt.Sprintf(", skipped %d", len(r.Failures))
	}
	return msg
}

func (o *Orchestrator) complete(jobID string, report domain.ReconciliationReport, msg string) {
	o.Registry.update(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Progress = 100
		j.Message = msg
		j.Report = report
		j.FinishedAt = o.now().UTC().Format(time.RFC3339)
	})
}

func (o *Orchestrator) fail(jobID, msg string) {
	o.Registry.update(jobID, func(j *Job) {
		j.State = StateFailed
		j.Message = msg
		j.FinishedAt = o.now().UTC().Format(time.RFC3339)
	})
}

// SyncAll runs every configured source concurrently and waits for all of
// them. Sources already running are skipped.
func (o *Orchestrator) SyncAll(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for name := range o.Sources {
		name := name
		g.Go(func() error {
			jobID, done, err := o.begin(name)
			if errors.Is(err, ErrSyncBusy) {
				o.Logger.Printf("sync %s: already running, skipped", name)
				return nil
			}
			if err != nil {
				return err
			}
			defer close(done)
			o.run(jobID, name)
			return nil
		})
	}
	return g.Wait()
}

func chunk(items []domain.NormalizedWorkItem, size int) [][]domain.NormalizedWorkItem {
	if size <= 0 {
		size = 50
	}
	var out [][]domain.NormalizedWorkItem
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
