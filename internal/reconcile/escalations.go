package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"govpulse/internal/domain"
	"govpulse/internal/events"
	"govpulse/internal/pipeline"
	"govpulse/internal/repo"
)

// SyncEscalations derives escalation records from movements that crossed
// an ownership-level boundary upward. Runs as its own pass over movement
// history, never during primary reconciliation, and is idempotent: at
// most one escalation per movement.
func (e Engine) SyncEscalations(ctx context.Context) (int, error) {
	movements, err := e.Repo.ListMovements(ctx, repo.MovementFilters{})
	if err != nil {
		return 0, err
	}
	created := 0
	for _, m := range movements {
		if !pipeline.CrossesLevelUp(m.FromStatus, m.ToStatus) {
			continue
		}
		esc := domain.Escalation{
			ID:         uuid.New().String(),
			WorkItemID: m.WorkItemID,
			MovementID: m.ID,
			FromLevel:  pipeline.OwnershipLevel(m.FromStatus),
			ToLevel:    pipeline.OwnershipLevel(m.ToStatus),
			Status:     domain.EscalationPending,
			CreatedAt:  e.now().UTC().Format(time.RFC3339),
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return created, err
		}
		inserted, err := e.Repo.InsertEscalationIgnore(ctx, tx, esc)
		if err != nil {
			tx.Rollback()
			return created, err
		}
		if !inserted {
			tx.Rollback()
			continue
		}
		if err := e.Events.Append(ctx, tx, events.EscalationRaised(esc)); err != nil {
			tx.Rollback()
			return created, err
		}
		if err := tx.Commit(); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// ResolveEscalation closes a pending escalation with a resolution note.
func (e Engine) ResolveEscalation(ctx context.Context, id, status, resolution, actorID string) (domain.Escalation, error) {
	resolvedAt := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.ResolveEscalation(ctx, id, status, resolution, resolvedAt); err != nil {
		return domain.Escalation{}, err
	}
	esc, err := e.Repo.GetEscalation(ctx, id)
	if err != nil {
		return domain.Escalation{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return esc, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, events.EscalationResolved(id, status, actorID)); err != nil {
		return esc, err
	}
	return esc, tx.Commit()
}
