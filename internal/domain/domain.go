package domain

// WorkItem is the canonical record for a ticket, incident or service
// request ingested from an external platform. (Source, ExternalKey) is
// unique; DeliveryPoints is always derived from Complexity and Risk.
type WorkItem struct {
	ID             string  `json:"id"`
	Source         string  `json:"source"`
	ExternalKey    string  `json:"external_key"`
	Kind           string  `json:"kind" enum:"ticket,incident,service_request"`
	Title          string  `json:"title"`
	Status         string  `json:"status" enum:"todo,in_progress,review,qa_test,ready_for_live,live,rollback"`
	Priority       string  `json:"priority" enum:"critical,high,medium,low"`
	Complexity     int     `json:"complexity" minimum:"1" maximum:"4"`
	Risk           int     `json:"risk" minimum:"1" maximum:"4"`
	DeliveryPoints int     `json:"delivery_points"`
	AssigneeID     *string `json:"assignee_id,omitempty"`
	ProjectID      string  `json:"project_id"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

// Movement records one observed status transition of a work item.
// Immutable once written, except for a justification a reviewer may
// attach later.
type Movement struct {
	ID            string  `json:"id"`
	WorkItemID    string  `json:"work_item_id"`
	FromStatus    string  `json:"from_status"`
	ToStatus      string  `json:"to_status"`
	Actor         string  `json:"actor"`
	Justification *string `json:"justification,omitempty"`
	IsRollback    bool    `json:"is_rollback"`
	PointsAtMove  int     `json:"points_at_move"`
	OccurredAt    string  `json:"occurred_at" format:"date-time"`
}

// DeliveryAggregation is a cached projection over a project's work items.
// Never a source of truth; always recomputable by summing constituents.
type DeliveryAggregation struct {
	TotalPoints     int    `json:"total_points"`
	CompletedPoints int    `json:"completed_points"`
	TotalItems      int    `json:"total_items"`
	CompletedItems  int    `json:"completed_items"`
	RecalculatedAt  string `json:"recalculated_at,omitempty" format:"date-time"`
}

type Project struct {
	ID          string              `json:"id"`
	TeamID      string              `json:"team_id"`
	Key         string              `json:"key"`
	Name        string              `json:"name"`
	Aggregation DeliveryAggregation `json:"aggregation"`
	CreatedAt   string              `json:"created_at" format:"date-time"`
}

type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Escalation is derived from a movement crossing an ownership-level
// boundary (e.g. triage to engineering). Generated by a dedicated sync
// pass, never during primary reconciliation.
type Escalation struct {
	ID         string  `json:"id"`
	WorkItemID string  `json:"work_item_id"`
	MovementID string  `json:"movement_id"`
	FromLevel  string  `json:"from_level"`
	ToLevel    string  `json:"to_level"`
	Status     string  `json:"status" enum:"pending,resolved,dismissed"`
	Resolution *string `json:"resolution,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	ResolvedAt *string `json:"resolved_at,omitempty" format:"date-time"`
}

const (
	EscalationPending   = "pending"
	EscalationResolved  = "resolved"
	EscalationDismissed = "dismissed"
)

// NormalizedWorkItem is the shape adapters emit after mapping a remote
// record onto the canonical vocabulary. Complexity/Risk are validated by
// the reconcile engine, not clamped here.
type NormalizedWorkItem struct {
	ExternalKey string  `json:"external_key"`
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	Complexity  int     `json:"complexity"`
	Risk        int     `json:"risk"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	Actor       string  `json:"actor,omitempty"`
	ProjectKey  string  `json:"project_key"`
}

// ExternalProject is a remote project reference listed by an adapter.
type ExternalProject struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ItemFailure records one skipped item inside a reconciliation batch.
type ItemFailure struct {
	ExternalKey string `json:"external_key"`
	Reason      string `json:"reason"`
}

// ReconciliationReport summarizes one batch.
type ReconciliationReport struct {
	Source    string        `json:"source"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Movements int           `json:"movements"`
	Rollbacks int           `json:"rollbacks"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

func (r *ReconciliationReport) Merge(other ReconciliationReport) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Movements += other.Movements
	r.Rollbacks += other.Rollbacks
	r.Failures = append(r.Failures, other.Failures...)
}
