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

// trackerClient talks to an issue tracker exposing a JSON REST API
// (projects, issues with status/priority/complexity/risk fields, and a
// per-issue changelog).
type trackerClient struct {
	name    string
	baseURL string
	token   string
	http    *http.Client
}

func newTrackerClient(opts Options) *trackerClient {
	return &trackerClient{
		name:    opts.Name,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    &http.Client{Timeout: opts.Timeout},
	}
}

func (c *trackerClient) Name() string { return c.name }

// getJSON fetches a URL with bounded exponential retry. Transport errors
// and 5xx responses are retried and already wrapped as ErrUnreachable;
// everything else is marked permanent so the retry loop stops at once.
func (c *trackerClient) getJSON(ctx context.Context, path string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: server error %d", ErrUnreachable, resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return backoff.Permanent(fmt.Errorf("%w: auth rejected (%d)", ErrUnreachable, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
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

func (c *trackerClient) Authenticate(ctx context.Context) error {
	var me struct {
		AccountID string `json:"account_id"`
	}
	return c.getJSON(ctx, "/rest/api/myself", &me)
}

func (c *trackerClient) ListProjects(ctx context.Context) ([]domain.ExternalProject, error) {
	var raw []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/rest/api/projects", &raw); err != nil {
		return nil, err
	}
	projects := make([]domain.ExternalProject, 0, len(raw))
	for _, p := range raw {
		projects = append(projects, domain.ExternalProject{Key: p.Key, Name: p.Name})
	}
	return projects, nil
}

type trackerIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string `json:"summary"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		Complexity int `json:"complexity"`
		Risk       int `json:"risk"`
		Assignee   *struct {
			AccountID string `json:"account_id"`
		} `json:"assignee"`
	} `json:"fields"`
}

func (c *trackerClient) ListWorkItems(ctx context.Context, projectKey string) ([]domain.NormalizedWorkItem, []domain.ItemFailure, error) {
	var raw struct {
		Issues []trackerIssue `json:"issues"`
	}
	path := "/rest/api/search?project=" + url.QueryEscape(projectKey)
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, nil, err
	}
	items := make([]domain.NormalizedWorkItem, 0, len(raw.Issues))
	var skipped []domain.ItemFailure
	for _, issue := range raw.Issues {
		item, err := normalizeTrackerIssue(issue, projectKey)
		if err != nil {
			skipped = append(skipped, itemFailure(err))
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

func normalizeTrackerIssue(issue trackerIssue, projectKey string) (domain.NormalizedWorkItem, error) {
	if issue.Key == "" {
		return domain.NormalizedWorkItem{}, &ItemError{ExternalKey: "?", Reason: "missing issue key"}
	}
	status, ok := trackerStatusMap[strings.ToLower(issue.Fields.Status.Name)]
	if !ok {
		return domain.NormalizedWorkItem{}, &ItemError{ExternalKey: issue.Key, Reason: fmt.Sprintf("unmapped status %q", issue.Fields.Status.Name)}
	}
	item := domain.NormalizedWorkItem{
		ExternalKey: issue.Key,
		Kind:        trackerKind(issue.Fields.IssueType.Name),
		Title:       issue.Fields.Summary,
		Status:      status,
		Priority:    normalizePriority(issue.Fields.Priority.Name),
		Complexity:  issue.Fields.Complexity,
		Risk:        issue.Fields.Risk,
		ProjectKey:  projectKey,
	}
	if issue.Fields.Assignee != nil && issue.Fields.Assignee.AccountID != "" {
		id := issue.Fields.Assignee.AccountID
		item.AssigneeID = &id
	}
	return item, nil
}

var trackerStatusMap = map[string]string{
	"to do":          "todo",
	"backlog":        "todo",
	"in progress":    "in_progress",
	"in review":      "review",
	"code review":    "review",
	"qa":             "qa_test",
	"testing":        "qa_test",
	"staging":        "ready_for_live",
	"ready for live": "ready_for_live",
	"done":           "live",
	"live":           "live",
	"rolled back":    "rollback",
}

func trackerKind(issueType string) string {
	switch strings.ToLower(issueType) {
	case "incident", "outage":
		return "incident"
	case "service request", "request":
		return "service_request"
	default:
		return "ticket"
	}
}

func normalizePriority(p string) string {
	switch strings.ToLower(p) {
	case "blocker", "critical", "highest", "p1":
		return "critical"
	case "high", "major", "p2":
		return "high"
	case "low", "minor", "trivial", "p4", "p5":
		return "low"
	default:
		return "medium"
	}
}

func (c *trackerClient) ListHistory(ctx context.Context, externalKey string) ([]HistoryEntry, error) {
	var raw struct {
		Changes []struct {
			At     time.Time `json:"at"`
			Field  string    `json:"field"`
			From   string    `json:"from"`
			To     string    `json:"to"`
			Author string    `json:"author"`
		} `json:"changes"`
	}
	path := "/rest/api/issues/" + url.PathEscape(externalKey) + "/changelog"
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	var history []HistoryEntry
	for _, ch := range raw.Changes {
		if ch.Field != "status" {
			continue
		}
		from, okFrom := trackerStatusMap[strings.ToLower(ch.From)]
		to, okTo := trackerStatusMap[strings.ToLower(ch.To)]
		if !okFrom || !okTo {
			continue
		}
		history = append(history, HistoryEntry{At: ch.At, FromStatus: from, ToStatus: to, Actor: ch.Author})
	}
	return history, nil
}
