// Package analytics derives read-side reports from the canonical store.
// Everything here is recomputed on demand from work_items, movements and
// the cached project aggregations; nothing is maintained incrementally.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"govpulse/internal/pipeline"
)

// DefaultAllowances maps a priority to the time a work item may stay
// open before its due date. Overridable through config.
func DefaultAllowances() map[string]time.Duration {
	return map[string]time.Duration{
		"critical": 4 * time.Hour,
		"high":     24 * time.Hour,
		"medium":   72 * time.Hour,
		"low":      168 * time.Hour,
	}
}

const DefaultLookahead = time.Hour

type Engine struct {
	DB         *sql.DB
	Now        func() time.Time
	Allowances map[string]time.Duration
	Lookahead  time.Duration
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:         db,
		Now:        time.Now,
		Allowances: DefaultAllowances(),
		Lookahead:  DefaultLookahead,
	}
}

type TeamPerformance struct {
	TeamID          string  `json:"team_id"`
	TeamName        string  `json:"team_name"`
	Projects        int     `json:"projects"`
	TotalItems      int     `json:"total_items"`
	CompletedItems  int     `json:"completed_items"`
	TotalPoints     int     `json:"total_points"`
	CompletedPoints int     `json:"completed_points"`
	CompletionRate  float64 `json:"completion_rate"`
}

// TeamPerformance rolls the cached project aggregations up per team.
// Teams without projects still appear, with zero rates.
func (e Engine) TeamPerformance(ctx context.Context) ([]TeamPerformance, error) {
	rows, err := e.DB.QueryContext(ctx, `
		SELECT t.id, t.name,
			count(p.id),
			coalesce(sum(p.total_items), 0),
			coalesce(sum(p.completed_items), 0),
			coalesce(sum(p.total_points), 0),
			coalesce(sum(p.completed_points), 0)
		FROM teams t
		LEFT JOIN projects p ON p.team_id = t.id
		GROUP BY t.id, t.name
		ORDER BY t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TeamPerformance
	for rows.Next() {
		var tp TeamPerformance
		if err := rows.Scan(&tp.TeamID, &tp.TeamName, &tp.Projects, &tp.TotalItems, &tp.CompletedItems, &tp.TotalPoints, &tp.CompletedPoints); err != nil {
			return nil, err
		}
		if tp.TotalItems > 0 {
			tp.CompletionRate = float64(tp.CompletedItems) / float64(tp.TotalItems)
		}
		res = append(res, tp)
	}
	return res, rows.Err()
}

type RollbackStats struct {
	Since            string  `json:"since"`
	Count            int     `json:"count"`
	AvgPointsLost    float64 `json:"avg_points_lost"`
	AffectedProjects int     `json:"affected_projects"`
}

// RollbackStats summarizes rollback movements observed since the given
// time. Points lost are the item's delivery points at the moment of the
// rollback, not its current value.
func (e Engine) RollbackStats(ctx context.Context, since time.Time) (RollbackStats, error) {
	stats := RollbackStats{Since: since.UTC().Format(time.RFC3339)}
	err := e.DB.QueryRowContext(ctx, `
		SELECT count(*),
			coalesce(avg(m.points_at_move), 0),
			count(DISTINCT w.project_id)
		FROM movements m
		JOIN work_items w ON w.id = m.work_item_id
		WHERE m.is_rollback = 1 AND m.occurred_at >= ?`,
		stats.Since).Scan(&stats.Count, &stats.AvgPointsLost, &stats.AffectedProjects)
	if err != nil {
		return RollbackStats{}, err
	}
	return stats, nil
}

type SLAItem struct {
	WorkItemID  string `json:"work_item_id"`
	ExternalKey string `json:"external_key"`
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	DueAt       string `json:"due_at"`
	Breached    bool   `json:"breached"`
	AtRisk      bool   `json:"at_risk"`
}

type SLAReport struct {
	Total          int       `json:"total"`
	Breached       int       `json:"breached"`
	AtRisk         int       `json:"at_risk"`
	ComplianceRate float64   `json:"compliance_rate"`
	Items          []SLAItem `json:"items,omitempty"`
}

func (e Engine) allowance(priority string) time.Duration {
	if d, ok := e.Allowances[priority]; ok {
		return d
	}
	return e.Allowances["medium"]
}

// SLAReport computes the due date of every work item from its priority
// allowance and reports breaches and items at risk. Terminal items can
// neither breach nor be at risk. The compliance rate is 100 for an
// empty store.
func (e Engine) SLAReport(ctx context.Context) (SLAReport, error) {
	rows, err := e.DB.QueryContext(ctx, `
		SELECT id, external_key, title, priority, status, created_at
		FROM work_items ORDER BY created_at`)
	if err != nil {
		return SLAReport{}, err
	}
	defer rows.Close()

	now := e.Now().UTC()
	report := SLAReport{ComplianceRate: 100}
	for rows.Next() {
		var it SLAItem
		var createdAt string
		if err := rows.Scan(&it.WorkItemID, &it.ExternalKey, &it.Title, &it.Priority, &it.Status, &createdAt); err != nil {
			return SLAReport{}, err
		}
		created, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return SLAReport{}, fmt.Errorf("work item %s: bad created_at: %w", it.WorkItemID, err)
		}
		due := created.Add(e.allowance(it.Priority))
		it.DueAt = due.UTC().Format(time.RFC3339)
		report.Total++
		if pipeline.IsTerminal(it.Status) {
			continue
		}
		switch {
		case now.After(due):
			it.Breached = true
			report.Breached++
		case !due.After(now.Add(e.Lookahead)):
			it.AtRisk = true
			report.AtRisk++
		default:
			continue
		}
		report.Items = append(report.Items, it)
	}
	if err := rows.Err(); err != nil {
		return SLAReport{}, err
	}
	if report.Total > 0 {
		report.ComplianceRate = float64(report.Total-report.Breached) / float64(report.Total) * 100
	}
	return report, nil
}

type TrendPoint struct {
	Bucket          string `json:"bucket"`
	Movements       int    `json:"movements"`
	Rollbacks       int    `json:"rollbacks"`
	PointsDelivered int    `json:"points_delivered"`
}

// Trend buckets movement activity per day between from and to
// (inclusive). Days with no activity still get a zero-valued point so
// the series stays contiguous.
func (e Engine) Trend(ctx context.Context, from, to time.Time) ([]TrendPoint, error) {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	if to.Before(from) {
		return nil, fmt.Errorf("trend window ends before it starts")
	}
	rows, err := e.DB.QueryContext(ctx, `
		SELECT substr(occurred_at, 1, 10),
			count(*),
			coalesce(sum(is_rollback), 0),
			coalesce(sum(CASE WHEN to_status = ? THEN points_at_move ELSE 0 END), 0)
		FROM movements
		WHERE occurred_at >= ? AND occurred_at < ?
		GROUP BY 1`,
		pipeline.StatusLive,
		from.Format(time.RFC3339),
		to.Add(24*time.Hour).Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := map[string]TrendPoint{}
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Bucket, &p.Movements, &p.Rollbacks, &p.PointsDelivered); err != nil {
			return nil, err
		}
		byDay[p.Bucket] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var series []TrendPoint
	for day := from; !day.After(to); day = day.Add(24 * time.Hour) {
		bucket := day.Format("2006-01-02")
		p, ok := byDay[bucket]
		if !ok {
			p = TrendPoint{Bucket: bucket}
		}
		series = append(series, p)
	}
	return series, nil
}
