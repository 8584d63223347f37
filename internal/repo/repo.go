package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"govpulse/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

// --- teams ---

func (r Repo) InsertTeam(ctx context.Context, t domain.Team) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO teams(id,name,created_at) VALUES (?,?,?)`,
		t.ID, t.Name, t.CreatedAt)
	return err
}

func (r Repo) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var t domain.Team
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM teams ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// --- projects ---

const projectCols = `id,team_id,key,name,total_points,completed_points,total_items,completed_items,COALESCE(recalculated_at,''),created_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	err := scan(&p.ID, &p.TeamID, &p.Key, &p.Name,
		&p.Aggregation.TotalPoints, &p.Aggregation.CompletedPoints,
		&p.Aggregation.TotalItems, &p.Aggregation.CompletedItems,
		&p.Aggregation.RecalculatedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,team_id,key,name,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.TeamID, p.Key, p.Name, p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) GetProjectByKey(ctx context.Context, key string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE key=?`, key)
	return scanProject(row.Scan)
}

func (r Repo) ListProjects(ctx context.Context, teamID string) ([]domain.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects`
	var args []any
	if teamID != "" {
		query += ` WHERE team_id=?`
		args = append(args, teamID)
	}
	query += ` ORDER BY key ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateAggregation stores a recalculated projection for a project.
func (r Repo) UpdateAggregation(ctx context.Context, tx *sql.Tx, projectID string, agg domain.DeliveryAggregation) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET total_points=?, completed_points=?, total_items=?, completed_items=?, recalculated_at=? WHERE id=?`,
		agg.TotalPoints, agg.CompletedPoints, agg.TotalItems, agg.CompletedItems, agg.RecalculatedAt, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- work items ---

const workItemCols = `id,source,external_key,kind,title,status,priority,complexity,risk,delivery_points,assignee_id,project_id,created_at,updated_at`

func scanWorkItem(scan func(dest ...any) error) (domain.WorkItem, error) {
	var w domain.WorkItem
	var assignee sql.NullString
	err := scan(&w.ID, &w.Source, &w.ExternalKey, &w.Kind, &w.Title, &w.Status, &w.Priority,
		&w.Complexity, &w.Risk, &w.DeliveryPoints, &assignee, &w.ProjectID, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if assignee.Valid {
		w.AssigneeID = &assignee.String
	}
	return w, nil
}

func (r Repo) InsertWorkItem(ctx context.Context, tx *sql.Tx, w domain.WorkItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO work_items(`+workItemCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Source, w.ExternalKey, w.Kind, w.Title, w.Status, w.Priority,
		w.Complexity, w.Risk, w.DeliveryPoints, nullableStringPtr(w.AssigneeID), w.ProjectID, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r Repo) UpdateWorkItem(ctx context.Context, tx *sql.Tx, w domain.WorkItem) error {
	_, err := tx.ExecContext(ctx, `UPDATE work_items SET kind=?, title=?, status=?, priority=?, complexity=?, risk=?, delivery_points=?, assignee_id=?, updated_at=? WHERE id=?`,
		w.Kind, w.Title, w.Status, w.Priority, w.Complexity, w.Risk, w.DeliveryPoints,
		nullableStringPtr(w.AssigneeID), w.UpdatedAt, w.ID)
	return err
}

func (r Repo) GetWorkItem(ctx context.Context, id string) (domain.WorkItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workItemCols+` FROM work_items WHERE id=?`, id)
	return scanWorkItem(row.Scan)
}

// GetWorkItemByExternalKey looks up an item within its source namespace.
func (r Repo) GetWorkItemByExternalKey(ctx context.Context, source, externalKey string) (domain.WorkItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workItemCols+` FROM work_items WHERE source=? AND external_key=?`, source, externalKey)
	return scanWorkItem(row.Scan)
}

type WorkItemFilters struct {
	ProjectID       string
	Source          string
	Status          string
	Kind            string
	AssigneeID      string
	CreatedAfter    string
	CreatedBefore   string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListWorkItems(ctx context.Context, f WorkItemFilters) ([]domain.WorkItem, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Source != "" {
		clauses = append(clauses, "source=?")
		args = append(args, f.Source)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.CreatedAfter != "" {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.CreatedAfter)
	}
	if f.CreatedBefore != "" {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.CreatedBefore)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + workItemCols + ` FROM work_items ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// SumProjectItems recomputes the aggregation inputs from constituent work
// items inside the given transaction so the snapshot is consistent.
func (r Repo) SumProjectItems(ctx context.Context, tx *sql.Tx, projectID, terminalStatus string) (domain.DeliveryAggregation, error) {
	var agg domain.DeliveryAggregation
	err := tx.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(delivery_points),0),
		COALESCE(SUM(CASE WHEN status=? THEN delivery_points ELSE 0 END),0),
		COUNT(*),
		COALESCE(SUM(CASE WHEN status=? THEN 1 ELSE 0 END),0)
		FROM work_items WHERE project_id=?`, terminalStatus, terminalStatus, projectID).
		Scan(&agg.TotalPoints, &agg.CompletedPoints, &agg.TotalItems, &agg.CompletedItems)
	return agg, err
}

// --- movements ---

const movementCols = `id,work_item_id,from_status,to_status,actor,justification,is_rollback,points_at_move,occurred_at`

func scanMovement(scan func(dest ...any) error) (domain.Movement, error) {
	var m domain.Movement
	var justification sql.NullString
	err := scan(&m.ID, &m.WorkItemID, &m.FromStatus, &m.ToStatus, &m.Actor,
		&justification, &m.IsRollback, &m.PointsAtMove, &m.OccurredAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if justification.Valid {
		m.Justification = &justification.String
	}
	return m, nil
}

func (r Repo) InsertMovement(ctx context.Context, tx *sql.Tx, m domain.Movement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO movements(`+movementCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.WorkItemID, m.FromStatus, m.ToStatus, m.Actor,
		nullableStringPtr(m.Justification), m.IsRollback, m.PointsAtMove, m.OccurredAt)
	return err
}

func (r Repo) GetMovement(ctx context.Context, id string) (domain.Movement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+movementCols+` FROM movements WHERE id=?`, id)
	return scanMovement(row.Scan)
}

// AttachJustification adds reviewer context to an existing movement. The
// only mutation movements allow.
func (r Repo) AttachJustification(ctx context.Context, id, justification string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE movements SET justification=? WHERE id=?`, justification, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type MovementFilters struct {
	WorkItemID    string
	RollbackOnly  bool
	OccurredAfter string
	Limit         int
}

func (r Repo) ListMovements(ctx context.Context, f MovementFilters) ([]domain.Movement, error) {
	var clauses []string
	var args []any
	if f.WorkItemID != "" {
		clauses = append(clauses, "work_item_id=?")
		args = append(args, f.WorkItemID)
	}
	if f.RollbackOnly {
		clauses = append(clauses, "is_rollback=1")
	}
	if f.OccurredAfter != "" {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, f.OccurredAfter)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + movementCols + ` FROM movements ` + where + ` ORDER BY occurred_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Movement
	for rows.Next() {
		m, err := scanMovement(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) CountMovements(ctx context.Context, workItemID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE work_item_id=?`, workItemID).Scan(&n)
	return n, err
}

// --- escalations ---

const escalationCols = `id,work_item_id,movement_id,from_level,to_level,status,resolution,created_at,resolved_at`

func scanEscalation(scan func(dest ...any) error) (domain.Escalation, error) {
	var e domain.Escalation
	var resolution, resolvedAt sql.NullString
	err := scan(&e.ID, &e.WorkItemID, &e.MovementID, &e.FromLevel, &e.ToLevel,
		&e.Status, &resolution, &e.CreatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if resolution.Valid {
		e.Resolution = &resolution.String
	}
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.String
	}
	return e, nil
}

// InsertEscalationIgnore inserts an escalation unless one already exists
// for the same movement, keeping the derivation pass idempotent.
func (r Repo) InsertEscalationIgnore(ctx context.Context, tx *sql.Tx, e domain.Escalation) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO escalations(`+escalationCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.WorkItemID, e.MovementID, e.FromLevel, e.ToLevel, e.Status,
		nullableStringPtr(e.Resolution), e.CreatedAt, nullableStringPtr(e.ResolvedAt))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) GetEscalation(ctx context.Context, id string) (domain.Escalation, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+escalationCols+` FROM escalations WHERE id=?`, id)
	return scanEscalation(row.Scan)
}

type EscalationFilters struct {
	WorkItemID string
	Status     string
	Limit      int
}

func (r Repo) ListEscalations(ctx context.Context, f EscalationFilters) ([]domain.Escalation, error) {
	var clauses []string
	var args []any
	if f.WorkItemID != "" {
		clauses = append(clauses, "work_item_id=?")
		args = append(args, f.WorkItemID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + escalationCols + ` FROM escalations ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) ResolveEscalation(ctx context.Context, id, status, resolution, resolvedAt string) error {
	if status != domain.EscalationResolved && status != domain.EscalationDismissed {
		return fmt.Errorf("invalid escalation resolution status %q", status)
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE escalations SET status=?, resolution=?, resolved_at=? WHERE id=? AND status=?`,
		status, nullable(resolution), resolvedAt, id, domain.EscalationPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- events ---

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType string) ([]Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
