package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTrackerNormalization(t *testing.T) {
	var issue trackerIssue
	issue.Key = "CORE-7"
	issue.Fields.Summary = "Checkout broken"
	issue.Fields.IssueType.Name = "Incident"
	issue.Fields.Status.Name = "In Review"
	issue.Fields.Priority.Name = "Highest"
	issue.Fields.Complexity = 3
	issue.Fields.Risk = 2
	item, err := normalizeTrackerIssue(issue, "CORE")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if item.Kind != "incident" || item.Status != "review" || item.Priority != "critical" {
		t.Fatalf("normalized = %+v", item)
	}
}

func TestTrackerUnmappedStatusIsItemError(t *testing.T) {
	var issue trackerIssue
	issue.Key = "CORE-8"
	issue.Fields.Status.Name = "Weird Limbo"
	_, err := normalizeTrackerIssue(issue, "CORE")
	var itemErr *ItemError
	if !errors.As(err, &itemErr) {
		t.Fatalf("expected ItemError, got %v", err)
	}
	if itemErr.ExternalKey != "CORE-8" {
		t.Fatalf("itemErr = %+v", itemErr)
	}
}

func TestDeskNormalization(t *testing.T) {
	item, err := normalizeDeskTicket(deskTicket{
		ID:        "HD-1",
		Subject:   "VPN access",
		State:     "Pending",
		Urgency:   "low",
		Escalated: false,
	}, "HELP")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if item.Kind != "service_request" || item.Status != "review" || item.Priority != "low" {
		t.Fatalf("normalized = %+v", item)
	}
	escalated, _ := normalizeDeskTicket(deskTicket{ID: "HD-2", State: "open", Escalated: true}, "HELP")
	if escalated.Kind != "incident" {
		t.Fatalf("escalated ticket kind = %s, want incident", escalated.Kind)
	}
}

func TestTrackerListSkipsMalformedIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"issues":[
			{"key":"P-1","fields":{"summary":"ok","status":{"name":"To Do"},"complexity":1,"risk":1}},
			{"key":"P-2","fields":{"summary":"bad","status":{"name":"Weird Custom State"},"complexity":1,"risk":1}},
			{"key":"P-3","fields":{"summary":"ok","status":{"name":"Done"},"complexity":2,"risk":2}}
		]}`))
	}))
	defer srv.Close()
	c := newTrackerClient(Options{Name: "tracker", BaseURL: srv.URL, Timeout: 5 * time.Second})
	items, skipped, err := c.ListWorkItems(context.Background(), "P")
	if err != nil {
		t.Fatalf("list work items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want the two mappable issues", len(items))
	}
	if len(skipped) != 1 || skipped[0].ExternalKey != "P-2" {
		t.Fatalf("skipped = %+v, want P-2", skipped)
	}
}

func TestTrackerRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"key":"CORE","name":"Core"}]`))
	}))
	defer srv.Close()
	c := newTrackerClient(Options{Name: "tracker", BaseURL: srv.URL, Timeout: 5 * time.Second})
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 1 || projects[0].Key != "CORE" {
		t.Fatalf("projects = %+v", projects)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestTrackerUnreachableAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := newTrackerClient(Options{Name: "tracker", BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := c.ListProjects(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestNewSelectsVariant(t *testing.T) {
	s, err := New(Options{Name: "demo", Mode: "stub"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Stub); !ok {
		t.Fatalf("expected stub, got %T", s)
	}
	s, err = New(Options{Name: "prod", Kind: "tracker", Mode: "live", BaseURL: "http://example.test"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*trackerClient); !ok {
		t.Fatalf("expected tracker client, got %T", s)
	}
	if _, err := New(Options{Name: "x", Kind: "nope", Mode: "live"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestStubFixturesDeterministic(t *testing.T) {
	a := NewStub("demo", []string{"DEMO"})
	b := NewStub("demo", []string{"DEMO"})
	itemsA, _, _ := a.ListWorkItems(context.Background(), "DEMO")
	itemsB, _, _ := b.ListWorkItems(context.Background(), "DEMO")
	if len(itemsA) == 0 || len(itemsA) != len(itemsB) {
		t.Fatalf("fixtures differ: %d vs %d", len(itemsA), len(itemsB))
	}
	for i := range itemsA {
		if itemsA[i] != itemsB[i] {
			t.Fatalf("fixture %d differs: %+v vs %+v", i, itemsA[i], itemsB[i])
		}
	}
}
