// Package events appends the audit trail. Every engine mutation records
// an entry inside the same transaction as the write it describes, so the
// trail commits or rolls back with the data.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"govpulse/internal/domain"
)

// SystemActor attributes entries produced by reconciliation itself
// rather than by an authenticated caller.
const SystemActor = "system"

// Event types recorded by the engine.
const (
	TypeItemCreated         = "work_item.created"
	TypeItemUpdated         = "work_item.updated"
	TypeItemMoved           = "work_item.moved"
	TypeMovementJustified   = "movement.justified"
	TypeProjectRecalculated = "project.recalculated"
	TypeEscalationRaised    = "escalation.created"
	TypeEscalationResolved  = "escalation.resolved"
)

// Entry is one audit row. ProjectID is empty for records not scoped to a
// project.
type Entry struct {
	Type       string
	ProjectID  string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    map[string]any
}

// ItemCreated marks the first observation of a work item.
func ItemCreated(projectID string, w domain.WorkItem) Entry {
	return Entry{
		Type:       TypeItemCreated,
		ProjectID:  projectID,
		EntityKind: "work_item",
		EntityID:   w.ID,
		ActorID:    SystemActor,
		Payload:    map[string]any{"external_key": w.ExternalKey, "status": w.Status},
	}
}

// ItemUpdated marks a field-level change without a status movement of
// its own.
func ItemUpdated(projectID, itemID string) Entry {
	return Entry{
		Type:       TypeItemUpdated,
		ProjectID:  projectID,
		EntityKind: "work_item",
		EntityID:   itemID,
		ActorID:    SystemActor,
	}
}

// MovementRecorded marks a classified status transition.
func MovementRecorded(projectID string, m domain.Movement) Entry {
	return Entry{
		Type:       TypeItemMoved,
		ProjectID:  projectID,
		EntityKind: "movement",
		EntityID:   m.ID,
		ActorID:    m.Actor,
		Payload: map[string]any{
			"from":        m.FromStatus,
			"to":          m.ToStatus,
			"is_rollback": m.IsRollback,
		},
	}
}

// MovementJustified marks a justification attached after the fact.
func MovementJustified(movementID, actorID string) Entry {
	return Entry{
		Type:       TypeMovementJustified,
		EntityKind: "movement",
		EntityID:   movementID,
		ActorID:    actorID,
	}
}

// ProjectRecalculated marks a delivery aggregation rebuild.
func ProjectRecalculated(projectID string, agg domain.DeliveryAggregation) Entry {
	return Entry{
		Type:       TypeProjectRecalculated,
		ProjectID:  projectID,
		EntityKind: "project",
		EntityID:   projectID,
		ActorID:    SystemActor,
		Payload: map[string]any{
			"total_points":     agg.TotalPoints,
			"completed_points": agg.CompletedPoints,
		},
	}
}

// EscalationRaised marks an ownership-level crossing.
func EscalationRaised(esc domain.Escalation) Entry {
	return Entry{
		Type:       TypeEscalationRaised,
		EntityKind: "escalation",
		EntityID:   esc.ID,
		ActorID:    SystemActor,
		Payload:    map[string]any{"from_level": esc.FromLevel, "to_level": esc.ToLevel},
	}
}

// EscalationResolved marks an escalation closed as resolved or dismissed.
func EscalationResolved(escalationID, status, actorID string) Entry {
	return Entry{
		Type:       TypeEscalationResolved,
		EntityKind: "escalation",
		EntityID:   escalationID,
		ActorID:    actorID,
		Payload:    map[string]any{"status": status},
	}
}

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Append writes one entry inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), e.Type, nullable(e.ProjectID), e.EntityKind, nullable(e.EntityID), e.ActorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
