package events_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"govpulse/internal/db"
	"govpulse/internal/domain"
	"govpulse/internal/events"
	"govpulse/internal/migrate"
	"govpulse/internal/repo"
)

func newWriter(t *testing.T) (events.Writer, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return events.Writer{DB: conn, Now: func() time.Time { return now }}, repo.Repo{DB: conn}
}

func TestAppendMovementEntry(t *testing.T) {
	w, r := newWriter(t)
	ctx := context.Background()
	m := domain.Movement{
		ID:         "mv-1",
		WorkItemID: "wi-1",
		FromStatus: "qa_test",
		ToStatus:   "in_progress",
		Actor:      "reviewer-7",
		IsRollback: true,
	}
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, tx, events.MovementRecorded("proj-1", m)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := r.LatestEvents(ctx, 10, "proj-1", events.TypeItemMoved)
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	e := got[0]
	if e.ActorID != "reviewer-7" || e.EntityID != "mv-1" || e.EntityKind != "movement" {
		t.Fatalf("event = %+v", e)
	}
	if !strings.Contains(e.Payload, `"is_rollback":true`) {
		t.Fatalf("payload = %s, want rollback flag", e.Payload)
	}
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	w, r := newWriter(t)
	ctx := context.Background()
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, tx, events.MovementJustified("mv-9", "actor-1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	tx.Rollback()

	got, err := r.LatestEvents(ctx, 10, "", events.TypeMovementJustified)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("rolled-back entry still visible: %+v", got)
	}
}
