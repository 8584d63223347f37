// Package reconcile merges normalized work items from source adapters
// into the canonical store.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"govpulse/internal/domain"
	"govpulse/internal/events"
	"govpulse/internal/pipeline"
	"govpulse/internal/points"
	"govpulse/internal/repo"
)

const (
	defaultTeamID   = "unassigned"
	defaultTeamName = "Unassigned"
)

var validKinds = map[string]bool{
	"ticket":          true,
	"incident":        true,
	"service_request": true,
}

var validPriorities = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ReconcileBatch upserts a batch of normalized items from one source.
// Single-item failures are collected in the report and never abort the
// batch. Each touched project gets exactly one aggregation recalculation
// at the end.
func (e Engine) ReconcileBatch(ctx context.Context, source string, items []domain.NormalizedWorkItem) (domain.ReconciliationReport, error) {
	report := domain.ReconciliationReport{Source: source}
	touched := map[string]bool{}
	for _, item := range items {
		outcome, projectID, err := e.reconcileOne(ctx, source, item)
		if err != nil {
			report.Failures = append(report.Failures, domain.ItemFailure{
				ExternalKey: item.ExternalKey,
				Reason:      err.Error(),
			})
			continue
		}
		if projectID != "" {
			touched[projectID] = true
		}
		switch outcome.kind {
		case outcomeCreated:
			report.Created++
		case outcomeUpdated:
			report.Updated++
		case outcomeUnchanged:
			report.Unchanged++
		}
		if outcome.movement != nil {
			report.Movements++
			if outcome.movement.IsRollback {
				report.Rollbacks++
			}
		}
	}
	for projectID := range touched {
		if err := e.RecalculateProject(ctx, projectID); err != nil {
			// Stale-but-present beats absent: keep the previous cached
			// aggregation and report the failure.
			report.Failures = append(report.Failures, domain.ItemFailure{
				ExternalKey: "project:" + projectID,
				Reason:      fmt.Sprintf("aggregation recalculation: %v", err),
			})
		}
	}
	return report, nil
}

type outcomeKind int

const (
	outcomeCreated outcomeKind = iota
	outcomeUpdated
	outcomeUnchanged
)

type itemOutcome struct {
	kind     outcomeKind
	movement *domain.Movement
}

func validateItem(item domain.NormalizedWorkItem) error {
	if item.ExternalKey == "" {
		return errors.New("external key is required")
	}
	if item.Title == "" {
		return errors.New("title is required")
	}
	if item.ProjectKey == "" {
		return errors.New("project key is required")
	}
	if !validKinds[item.Kind] {
		return fmt.Errorf("unknown work item kind %q", item.Kind)
	}
	if !validPriorities[item.Priority] {
		return fmt.Errorf("unknown priority %q", item.Priority)
	}
	if !pipeline.IsValid(item.Status) {
		return fmt.Errorf("status %q not in canonical pipeline", item.Status)
	}
	return nil
}

func (e Engine) reconcileOne(ctx context.Context, source string, item domain.NormalizedWorkItem) (itemOutcome, string, error) {
	if err := validateItem(item); err != nil {
		return itemOutcome{}, "", err
	}
	pts, err := points.Compute(item.Complexity, item.Risk)
	if err != nil {
		return itemOutcome{}, "", err
	}
	project, err := e.ensureProject(ctx, item.ProjectKey)
	if err != nil {
		return itemOutcome{}, "", err
	}

	existing, err := e.Repo.GetWorkItemByExternalKey(ctx, source, item.ExternalKey)
	if errors.Is(err, repo.ErrNotFound) {
		if _, err := e.createItem(ctx, source, item, project.ID, pts); err != nil {
			return itemOutcome{}, "", err
		}
		return itemOutcome{kind: outcomeCreated}, project.ID, nil
	}
	if err != nil {
		return itemOutcome{}, "", err
	}
	return e.updateItem(ctx, existing, item, pts, project.ID)
}

// createItem seeds a new work item at its initial status. No movement is
// recorded for the first observation.
func (e Engine) createItem(ctx context.Context, source string, item domain.NormalizedWorkItem, projectID string, pts int) (domain.WorkItem, error) {
	now := e.now().UTC().Format(time.RFC3339)
	w := domain.WorkItem{
		ID:             uuid.New().String(),
		Source:         source,
		ExternalKey:    item.ExternalKey,
		Kind:           item.Kind,
		Title:          item.Title,
		Status:         item.Status,
		Priority:       item.Priority,
		Complexity:     item.Complexity,
		Risk:           item.Risk,
		DeliveryPoints: pts,
		AssigneeID:     item.AssigneeID,
		ProjectID:      projectID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWorkItem(ctx, tx, w); err != nil {
		return w, err
	}
	if err := e.Events.Append(ctx, tx, events.ItemCreated(projectID, w)); err != nil {
		return w, err
	}
	return w, tx.Commit()
}

// updateItem diffs mutable fields and, when the status changed, writes the
// item update and its movement in one transaction.
func (e Engine) updateItem(ctx context.Context, existing domain.WorkItem, item domain.NormalizedWorkItem, pts int, projectID string) (itemOutcome, string, error) {
	changed := false
	var movement *domain.Movement

	if existing.Status != item.Status {
		class, err := pipeline.Classify(existing.Status, item.Status)
		if err != nil {
			return itemOutcome{}, "", err
		}
		actor := item.Actor
		if actor == "" {
			actor = events.SystemActor
		}
		movement = &domain.Movement{
			ID:           uuid.New().String(),
			WorkItemID:   existing.ID,
			FromStatus:   existing.Status,
			ToStatus:     item.Status,
			Actor:        actor,
			IsRollback:   class == pipeline.Rollback,
			PointsAtMove: existing.DeliveryPoints,
			OccurredAt:   e.now().UTC().Format(time.RFC3339),
		}
		existing.Status = item.Status
		changed = true
	}
	if existing.Priority != item.Priority {
		existing.Priority = item.Priority
		changed = true
	}
	if existing.Title != item.Title {
		existing.Title = item.Title
		changed = true
	}
	if existing.Kind != item.Kind {
		existing.Kind = item.Kind
		changed = true
	}
	if !equalStringPtr(existing.AssigneeID, item.AssigneeID) {
		existing.AssigneeID = item.AssigneeID
		changed = true
	}
	if existing.Complexity != item.Complexity || existing.Risk != item.Risk {
		existing.Complexity = item.Complexity
		existing.Risk = item.Risk
		existing.DeliveryPoints = pts
		changed = true
	}
	if !changed {
		return itemOutcome{kind: outcomeUnchanged}, projectID, nil
	}

	existing.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return itemOutcome{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateWorkItem(ctx, tx, existing); err != nil {
		return itemOutcome{}, "", err
	}
	if movement != nil {
		if err := e.Repo.InsertMovement(ctx, tx, *movement); err != nil {
			return itemOutcome{}, "", err
		}
		if err := e.Events.Append(ctx, tx, events.MovementRecorded(existing.ProjectID, *movement)); err != nil {
			return itemOutcome{}, "", err
		}
	}
	if err := e.Events.Append(ctx, tx, events.ItemUpdated(existing.ProjectID, existing.ID)); err != nil {
		return itemOutcome{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return itemOutcome{}, "", err
	}
	return itemOutcome{kind: outcomeUpdated, movement: movement}, existing.ProjectID, nil
}

// ensureProject resolves a project by its external key, creating it under
// the default team on first sight.
func (e Engine) ensureProject(ctx context.Context, key string) (domain.Project, error) {
	p, err := e.Repo.GetProjectByKey(ctx, key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Project{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if _, err := e.Repo.GetTeam(ctx, defaultTeamID); errors.Is(err, repo.ErrNotFound) {
		if err := e.Repo.InsertTeam(ctx, domain.Team{ID: defaultTeamID, Name: defaultTeamName, CreatedAt: now}); err != nil {
			return domain.Project{}, fmt.Errorf("ensure default team: %w", err)
		}
	} else if err != nil {
		return domain.Project{}, err
	}
	p = domain.Project{
		ID:        uuid.New().String(),
		TeamID:    defaultTeamID,
		Key:       key,
		Name:      key,
		CreatedAt: now,
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, fmt.Errorf("create project %s: %w", key, err)
	}
	return p, nil
}

// RecalculateProject rebuilds a project's cached delivery aggregation from
// its work items. Idempotent; reads and writes inside one transaction.
func (e Engine) RecalculateProject(ctx context.Context, projectID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	agg, err := e.Repo.SumProjectItems(ctx, tx, projectID, pipeline.StatusLive)
	if err != nil {
		return err
	}
	agg.RecalculatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateAggregation(ctx, tx, projectID, agg); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectRecalculated(projectID, agg)); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachJustification lets a reviewer annotate a movement after the fact.
func (e Engine) AttachJustification(ctx context.Context, movementID, justification, actorID string) (domain.Movement, error) {
	if justification == "" {
		return domain.Movement{}, errors.New("justification is required")
	}
	if err := e.Repo.AttachJustification(ctx, movementID, justification); err != nil {
		return domain.Movement{}, err
	}
	m, err := e.Repo.GetMovement(ctx, movementID)
	if err != nil {
		return domain.Movement{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, events.MovementJustified(movementID, actorID)); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
