package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"govpulse/internal/adapter"
	"govpulse/internal/analytics"
	"govpulse/internal/config"
	"govpulse/internal/db"
	"govpulse/internal/domain"
	"govpulse/internal/migrate"
	"govpulse/internal/reconcile"
	"govpulse/internal/syncjob"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rec := reconcile.New(conn)
	registry := syncjob.NewRegistry()
	sources := map[string]adapter.Source{
		"tracker": adapter.NewStub("tracker", []string{"CORE"}),
	}
	orch := syncjob.NewOrchestrator(rec, registry, sources, log.New(os.Stderr, "[test] ", log.LstdFlags))
	handler, err := New(Config{
		Reconcile:    rec,
		Analytics:    analytics.New(conn),
		Orchestrator: orch,
		Jobs:         registry,
		BasePath:     "/v0",
		Auth:         auth,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func waitForJob(t *testing.T, srv *testServer, jobID string) JobResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/sync/jobs/"+jobID, nil, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("get job: %d %s", res.StatusCode, string(data))
		}
		var job JobResponse
		if err := json.Unmarshal(data, &job); err != nil {
			t.Fatalf("unmarshal job: %v", err)
		}
		if job.State == "completed" || job.State == "failed" {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job never finished")
	return JobResponse{}
}

func TestSyncLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/sync/tracker", nil, nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("start sync: %d %s", res.StatusCode, string(data))
	}
	var started SyncStartResponse
	if err := json.Unmarshal(data, &started); err != nil {
		t.Fatalf("unmarshal start: %v", err)
	}
	if started.JobID == "" {
		t.Fatal("expected a job id")
	}

	job := waitForJob(t, srv, started.JobID)
	if job.State != "completed" {
		t.Fatalf("job state = %s (%s)", job.State, job.Message)
	}
	if job.Report.Created != 5 {
		t.Fatalf("report = %+v, want 5 created", job.Report)
	}

	itemsRes, itemsData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/items", nil, nil)
	if itemsRes.StatusCode != http.StatusOK {
		t.Fatalf("list items: %d %s", itemsRes.StatusCode, string(itemsData))
	}
	var items []domain.WorkItem
	if err := json.Unmarshal(itemsData, &items); err != nil {
		t.Fatalf("unmarshal items: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
}

func TestStartSyncUnknownSource(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/sync/wiki", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
}

func TestWebhookIntakeAndJustification(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	payload := map[string]any{
		"external_key": "CORE-77",
		"kind":         "incident",
		"title":        "Payment gateway down",
		"status":       "qa_test",
		"priority":     "critical",
		"complexity":   3,
		"risk":         4,
		"project_key":  "CORE",
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/webhooks/tracker", payload, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook: %d %s", res.StatusCode, string(data))
	}

	// Same item pushed again with a backward status: one rollback movement.
	payload["status"] = "in_progress"
	payload["actor"] = "oncall"
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/webhooks/tracker", payload, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook update: %d %s", res.StatusCode, string(data))
	}
	var report domain.ReconciliationReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Rollbacks != 1 {
		t.Fatalf("report = %+v, want 1 rollback", report)
	}

	mvRes, mvData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/movements?rollback_only=true", nil, nil)
	if mvRes.StatusCode != http.StatusOK {
		t.Fatalf("list movements: %d %s", mvRes.StatusCode, string(mvData))
	}
	var movements []domain.Movement
	if err := json.Unmarshal(mvData, &movements); err != nil {
		t.Fatalf("unmarshal movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("movements = %d, want 1", len(movements))
	}

	jRes, jData := doJSON(t, client, http.MethodPost, srv.URL+"/v0/movements/"+movements[0].ID+"/justification", map[string]any{
		"justification": "regression found in payment capture",
	}, nil)
	if jRes.StatusCode != http.StatusOK {
		t.Fatalf("justification: %d %s", jRes.StatusCode, string(jData))
	}
	var updated domain.Movement
	if err := json.Unmarshal(jData, &updated); err != nil {
		t.Fatalf("unmarshal movement: %v", err)
	}
	if updated.Justification == nil || *updated.Justification == "" {
		t.Fatal("justification not attached")
	}
}

func TestWebhookRejectsInvalidItem(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/webhooks/tracker", map[string]any{
		"external_key": "CORE-88",
		"kind":         "ticket",
		"title":        "bad complexity",
		"status":       "todo",
		"priority":     "low",
		"complexity":   9,
		"risk":         1,
		"project_key":  "CORE",
	}, nil)
	// Schema bounds catch the bad range before the engine does.
	if res.StatusCode != http.StatusBadRequest && res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected rejection, got %d %s", res.StatusCode, string(data))
	}
}

func TestEscalationFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	payload := map[string]any{
		"external_key": "CORE-90",
		"kind":         "ticket",
		"title":        "Escalate me",
		"status":       "todo",
		"priority":     "high",
		"complexity":   2,
		"risk":         2,
		"project_key":  "CORE",
	}
	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/webhooks/tracker", payload, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("seed: %d %s", res.StatusCode, string(data))
	}
	// todo -> in_progress crosses triage into engineering ownership.
	payload["status"] = "in_progress"
	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/webhooks/tracker", payload, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("advance: %d %s", res.StatusCode, string(data))
	}

	syncRes, syncData := doJSON(t, client, http.MethodPost, srv.URL+"/v0/escalations/sync", nil, nil)
	if syncRes.StatusCode != http.StatusOK {
		t.Fatalf("sync escalations: %d %s", syncRes.StatusCode, string(syncData))
	}

	listRes, listData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/escalations?status=pending", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list escalations: %d %s", listRes.StatusCode, string(listData))
	}
	var escalations []domain.Escalation
	if err := json.Unmarshal(listData, &escalations); err != nil {
		t.Fatalf("unmarshal escalations: %v", err)
	}
	if len(escalations) != 1 {
		t.Fatalf("escalations = %d, want 1", len(escalations))
	}

	resolveRes, resolveData := doJSON(t, client, http.MethodPost, srv.URL+"/v0/escalations/"+escalations[0].ID+"/resolve", map[string]any{
		"status":     "resolved",
		"resolution": "engineering picked it up",
	}, nil)
	if resolveRes.StatusCode != http.StatusOK {
		t.Fatalf("resolve: %d %s", resolveRes.StatusCode, string(resolveData))
	}
	var resolved domain.Escalation
	if err := json.Unmarshal(resolveData, &resolved); err != nil {
		t.Fatalf("unmarshal escalation: %v", err)
	}
	if resolved.Status != domain.EscalationResolved {
		t.Fatalf("status = %s, want resolved", resolved.Status)
	}

	// Resolving twice conflicts.
	again, againData := doJSON(t, client, http.MethodPost, srv.URL+"/v0/escalations/"+escalations[0].ID+"/resolve", map[string]any{
		"status": "dismissed",
	}, nil)
	if again.StatusCode == http.StatusOK {
		t.Fatalf("expected second resolve to fail, got %d %s", again.StatusCode, string(againData))
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/analytics/sla", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sla: %d %s", res.StatusCode, string(data))
	}
	var sla analytics.SLAReport
	if err := json.Unmarshal(data, &sla); err != nil {
		t.Fatalf("unmarshal sla: %v", err)
	}
	if sla.ComplianceRate != 100 {
		t.Fatalf("compliance = %v, want 100 on empty store", sla.ComplianceRate)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/analytics/trends?from=2025-06-01&to=2025-06-03", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("trends: %d %s", res.StatusCode, string(data))
	}
	var series []analytics.TrendPoint
	if err := json.Unmarshal(data, &series); err != nil {
		t.Fatalf("unmarshal trends: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("buckets = %d, want 3 zero-filled days", len(series))
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	auth := AuthConfig{Tokens: []config.StaticToken{{Name: "ci", Token: "s3cret", Capabilities: []string{"*"}}}}
	srv, cleanup := newTestServer(t, auth)
	defer cleanup()
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", res.StatusCode)
	}
}

func TestStaticTokenCapabilityEnforcement(t *testing.T) {
	auth := AuthConfig{Tokens: []config.StaticToken{
		{Name: "reporter", Token: "read-only", Capabilities: []string{config.CapAnalyticsRead}},
	}}
	srv, cleanup := newTestServer(t, auth)
	defer cleanup()
	client := srv.Client()

	// No credentials.
	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/items", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	// Wrong token.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/items", nil, map[string]string{"X-Api-Key": "nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
	// Valid token, missing capability.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/items", nil, map[string]string{"X-Api-Key": "read-only"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.StatusCode)
	}
	// Valid token, granted capability.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/analytics/teams", nil, map[string]string{"X-Api-Key": "read-only"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
}
