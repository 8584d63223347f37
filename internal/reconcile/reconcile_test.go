package reconcile_test

import (
	"context"
	"testing"
	"time"

	"govpulse/internal/db"
	"govpulse/internal/domain"
	"govpulse/internal/migrate"
	"govpulse/internal/reconcile"
	"govpulse/internal/repo"
)

type testEnv struct {
	Engine reconcile.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := reconcile.New(conn)
	eng.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func item(key, status string) domain.NormalizedWorkItem {
	return domain.NormalizedWorkItem{
		ExternalKey: key,
		Kind:        "ticket",
		Title:       "Item " + key,
		Status:      status,
		Priority:    "medium",
		Complexity:  2,
		Risk:        2,
		ProjectKey:  "CORE",
	}
}

func TestReconcileSeedsNewItemsWithoutMovements(t *testing.T) {
	env := newTestEnv(t)
	report, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{
		item("T-1", "todo"),
		item("T-2", "in_progress"),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Created != 2 || report.Movements != 0 {
		t.Fatalf("report = %+v, want 2 created, 0 movements", report)
	}
	w, err := env.Engine.Repo.GetWorkItemByExternalKey(env.Ctx, "tracker", "T-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if w.DeliveryPoints != 3 {
		t.Fatalf("points = %d, want 3 for complexity=2 risk=2", w.DeliveryPoints)
	}
}

func TestReconcileScenarioThreeItems(t *testing.T) {
	env := newTestEnv(t)
	// Seed B and C at their prior statuses.
	_, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{
		item("B", "in_progress"),
		item("C", "qa_test"),
	})
	if err != nil {
		t.Fatal(err)
	}
	// A is new, B advances, C moves backward.
	report, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{
		item("A", "todo"),
		item("B", "review"),
		item("C", "in_progress"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 1 || report.Updated != 2 {
		t.Fatalf("report = %+v, want 1 created, 2 updated", report)
	}
	if report.Movements != 2 || report.Rollbacks != 1 {
		t.Fatalf("report = %+v, want 2 movements, 1 rollback", report)
	}
	items, err := env.Engine.Repo.ListWorkItems(env.Ctx, repo.WorkItemFilters{Source: "tracker"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	b, _ := env.Engine.Repo.GetWorkItemByExternalKey(env.Ctx, "tracker", "B")
	moves, err := env.Engine.Repo.ListMovements(env.Ctx, repo.MovementFilters{WorkItemID: b.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(moves) != 1 || moves[0].IsRollback {
		t.Fatalf("B movements = %+v, want one forward movement", moves)
	}
	c, _ := env.Engine.Repo.GetWorkItemByExternalKey(env.Ctx, "tracker", "C")
	moves, err = env.Engine.Repo.ListMovements(env.Ctx, repo.MovementFilters{WorkItemID: c.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(moves) != 1 || !moves[0].IsRollback {
		t.Fatalf("C movements = %+v, want one rollback movement", moves)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	env := newTestEnv(t)
	batch := []domain.NormalizedWorkItem{
		item("T-1", "todo"),
		item("T-2", "review"),
		item("T-3", "live"),
	}
	if _, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", batch); err != nil {
		t.Fatal(err)
	}
	p1, err := env.Engine.Repo.GetProjectByKey(env.Ctx, "CORE")
	if err != nil {
		t.Fatal(err)
	}
	report, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", batch)
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 0 || report.Updated != 0 || report.Unchanged != 3 || report.Movements != 0 {
		t.Fatalf("second run report = %+v, want all unchanged", report)
	}
	p2, err := env.Engine.Repo.GetProjectByKey(env.Ctx, "CORE")
	if err != nil {
		t.Fatal(err)
	}
	if p1.Aggregation.TotalPoints != p2.Aggregation.TotalPoints ||
		p1.Aggregation.CompletedPoints != p2.Aggregation.CompletedPoints ||
		p1.Aggregation.TotalItems != p2.Aggregation.TotalItems {
		t.Fatalf("aggregation drifted: %+v vs %+v", p1.Aggregation, p2.Aggregation)
	}
	items, _ := env.Engine.Repo.ListWorkItems(env.Ctx, repo.WorkItemFilters{Source: "tracker"})
	if len(items) != 3 {
		t.Fatalf("duplicate items created: %d", len(items))
	}
}

func TestRiskChangeRecomputesPointsWithoutMovement(t *testing.T) {
	env := newTestEnv(t)
	first := item("T-9", "in_progress")
	first.Complexity = 3
	first.Risk = 4
	if _, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{first}); err != nil {
		t.Fatal(err)
	}
	w, _ := env.Engine.Repo.GetWorkItemByExternalKey(env.Ctx, "tracker", "T-9")
	if w.DeliveryPoints != 13 {
		t.Fatalf("points = %d, want 13", w.DeliveryPoints)
	}
	second := first
	second.Risk = 1
	report, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{second})
	if err != nil {
		t.Fatal(err)
	}
	if report.Movements != 0 {
		t.Fatalf("risk change created a movement: %+v", report)
	}
	w, _ = env.Engine.Repo.GetWorkItemByExternalKey(env.Ctx, "tracker", "T-9")
	if w.DeliveryPoints >= 13 {
		t.Fatalf("points = %d, want reduced below 13", w.DeliveryPoints)
	}
}

func TestBadItemDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv(t)
	bad := item("T-BAD", "todo")
	bad.Complexity = 9
	report, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{
		item("T-1", "todo"),
		bad,
		item("T-2", "todo"),
	})
	if err != nil {
		t.Fatalf("batch should survive item failure: %v", err)
	}
	if report.Created != 2 {
		t.Fatalf("created = %d, want 2", report.Created)
	}
	if len(report.Failures) != 1 || report.Failures[0].ExternalKey != "T-BAD" {
		t.Fatalf("failures = %+v, want T-BAD", report.Failures)
	}
}

func TestAggregationRecalculatedOncePerProject(t *testing.T) {
	env := newTestEnv(t)
	live := item("T-L", "live")
	live.Complexity = 4
	live.Risk = 4
	if _, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{
		item("T-1", "todo"), live,
	}); err != nil {
		t.Fatal(err)
	}
	p, err := env.Engine.Repo.GetProjectByKey(env.Ctx, "CORE")
	if err != nil {
		t.Fatal(err)
	}
	if p.Aggregation.TotalItems != 2 || p.Aggregation.CompletedItems != 1 {
		t.Fatalf("aggregation = %+v", p.Aggregation)
	}
	// total = 3 (2,2) + 21 (4,4); completed = 21.
	if p.Aggregation.TotalPoints != 24 || p.Aggregation.CompletedPoints != 21 {
		t.Fatalf("aggregation points = %+v", p.Aggregation)
	}
	// Recalculation is idempotent.
	if err := env.Engine.RecalculateProject(env.Ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	p2, _ := env.Engine.Repo.GetProject(env.Ctx, p.ID)
	if p2.Aggregation.TotalPoints != 24 || p2.Aggregation.CompletedPoints != 21 {
		t.Fatalf("recalc drifted: %+v", p2.Aggregation)
	}
}

func TestSyncEscalations(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{item("E-1", "todo")}); err != nil {
		t.Fatal(err)
	}
	// todo -> in_progress crosses triage -> engineering.
	if _, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{item("E-1", "in_progress")}); err != nil {
		t.Fatal(err)
	}
	created, err := env.Engine.SyncEscalations(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("escalations created = %d, want 1", created)
	}
	// Second pass creates nothing.
	created, err = env.Engine.SyncEscalations(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("escalation pass not idempotent: %d", created)
	}
	escs, err := env.Engine.Repo.ListEscalations(env.Ctx, repo.EscalationFilters{Status: "pending"})
	if err != nil {
		t.Fatal(err)
	}
	if len(escs) != 1 || escs[0].FromLevel != "triage" || escs[0].ToLevel != "engineering" {
		t.Fatalf("escalations = %+v", escs)
	}
	resolved, err := env.Engine.ResolveEscalation(env.Ctx, escs[0].ID, "resolved", "handed off", "reviewer")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != "resolved" || resolved.ResolvedAt == nil {
		t.Fatalf("resolved = %+v", resolved)
	}
}

func TestAttachJustification(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{item("J-1", "review")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ReconcileBatch(env.Ctx, "tracker", []domain.NormalizedWorkItem{item("J-1", "in_progress")}); err != nil {
		t.Fatal(err)
	}
	w, _ := env.Engine.Repo.GetWorkItemByExternalKey(env.Ctx, "tracker", "J-1")
	moves, _ := env.Engine.Repo.ListMovements(env.Ctx, repo.MovementFilters{WorkItemID: w.ID})
	if len(moves) != 1 {
		t.Fatalf("movements = %d, want 1", len(moves))
	}
	m, err := env.Engine.AttachJustification(env.Ctx, moves[0].ID, "scope cut after demo", "reviewer")
	if err != nil {
		t.Fatal(err)
	}
	if m.Justification == nil || *m.Justification != "scope cut after demo" {
		t.Fatalf("justification = %+v", m.Justification)
	}
}
