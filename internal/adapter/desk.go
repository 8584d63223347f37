package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"govpulse/internal/domain"
)

// deskClient talks to a helpdesk exposing tickets as flat JSON records.
// Helpdesk queues map onto the canonical pipeline's early stages; items
// flagged escalated arrive as incidents.
type deskClient struct {
	name    string
	baseURL string
	token   string
	http    *http.Client
}

func newDeskClient(opts Options) *deskClient {
	return &deskClient{
		name:    opts.Name,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    &http.Client{Timeout: opts.Timeout},
	}
}

func (c *deskClient) Name() string { return c.name }

func (c *deskClient) getJSON(ctx context.Context, path string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.token != "" {
			req.Header.Set("X-Api-Token", c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: server error %d", ErrUnreachable, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode))
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, policy)
}

func (c *deskClient) Authenticate(ctx context.Context) error {
	var ping struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "/api/v2/ping", &ping); err != nil {
		return err
	}
	if !ping.OK {
		return fmt.Errorf("%w: ping rejected", ErrUnreachable)
	}
	return nil
}

func (c *deskClient) ListProjects(ctx context.Context) ([]domain.ExternalProject, error) {
	var raw struct {
		Queues []struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		} `json:"queues"`
	}
	if err := c.getJSON(ctx, "/api/v2/queues", &raw); err != nil {
		return nil, err
	}
	projects := make([]domain.ExternalProject, 0, len(raw.Queues))
	for _, q := range raw.Queues {
		projects = append(projects, domain.ExternalProject{Key: q.Slug, Name: q.Name})
	}
	return projects, nil
}

type deskTicket struct {
	ID         string  `json:"id"`
	Subject    string  `json:"subject"`
	State      string  `json:"state"`
	Urgency    string  `json:"urgency"`
	Complexity int     `json:"complexity"`
	Risk       int     `json:"risk"`
	Escalated  bool    `json:"escalated"`
	AgentID    *string `json:"agent_id"`
	UpdatedBy  string  `json:"updated_by"`
}

func (c *deskClient) ListWorkItems(ctx context.Context, projectKey string) ([]domain.NormalizedWorkItem, []domain.ItemFailure, error) {
	var raw struct {
		Tickets []deskTicket `json:"tickets"`
	}
	path := "/api/v2/queues/" + url.PathEscape(projectKey) + "/tickets"
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, nil, err
	}
	items := make([]domain.NormalizedWorkItem, 0, len(raw.Tickets))
	var skipped []domain.ItemFailure
	for _, tk := range raw.Tickets {
		item, err := normalizeDeskTicket(tk, projectKey)
		if err != nil {
			skipped = append(skipped, itemFailure(err))
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

func normalizeDeskTicket(tk deskTicket, projectKey string) (domain.NormalizedWorkItem, error) {
	if tk.ID == "" {
		return domain.NormalizedWorkItem{}, &ItemError{ExternalKey: "?", Reason: "missing ticket id"}
	}
	status, ok := deskStateMap[strings.ToLower(tk.State)]
	if !ok {
		return domain.NormalizedWorkItem{}, &ItemError{ExternalKey: tk.ID, Reason: fmt.Sprintf("unmapped state %q", tk.State)}
	}
	kind := "service_request"
	if tk.Escalated {
		kind = "incident"
	}
	item := domain.NormalizedWorkItem{
		ExternalKey: tk.ID,
		Kind:        kind,
		Title:       tk.Subject,
		Status:      status,
		Priority:    normalizePriority(tk.Urgency),
		Complexity:  tk.Complexity,
		Risk:        tk.Risk,
		Actor:       tk.UpdatedBy,
		ProjectKey:  projectKey,
	}
	if tk.AgentID != nil && *tk.AgentID != "" {
		item.AssigneeID = tk.AgentID
	}
	return item, nil
}

var deskStateMap = map[string]string{
	"new":       "todo",
	"open":      "in_progress",
	"pending":   "review",
	"testing":   "qa_test",
	"scheduled": "ready_for_live",
	"solved":    "live",
	"closed":    "live",
	"reopened":  "rollback",
}

func (c *deskClient) ListHistory(ctx context.Context, externalKey string) ([]HistoryEntry, error) {
	var raw struct {
		Audits []struct {
			At    time.Time `json:"at"`
			From  string    `json:"from_state"`
			To    string    `json:"to_state"`
			Agent string    `json:"agent"`
		} `json:"audits"`
	}
	path := "/api/v2/tickets/" + url.PathEscape(externalKey) + "/audits"
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	var history []HistoryEntry
	for _, a := range raw.Audits {
		from, okFrom := deskStateMap[strings.ToLower(a.From)]
		to, okTo := deskStateMap[strings.ToLower(a.To)]
		if !okFrom || !okTo {
			continue
		}
		history = append(history, HistoryEntry{At: a.At, FromStatus: from, ToStatus: to, Actor: a.Agent})
	}
	return history, nil
}
