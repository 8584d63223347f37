package govpulsesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal GovPulse HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// WorkItem represents the API work item model (partial).
type WorkItem struct {
	ID             string `json:"id"`
	Source         string `json:"source"`
	ExternalKey    string `json:"external_key"`
	Kind           string `json:"kind"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	DeliveryPoints int    `json:"delivery_points"`
	ProjectID      string `json:"project_id"`
}

// Movement represents one status transition.
type Movement struct {
	ID            string  `json:"id"`
	WorkItemID    string  `json:"work_item_id"`
	FromStatus    string  `json:"from_status"`
	ToStatus      string  `json:"to_status"`
	Actor         string  `json:"actor"`
	Justification *string `json:"justification,omitempty"`
	IsRollback    bool    `json:"is_rollback"`
	PointsAtMove  int     `json:"points_at_move"`
	OccurredAt    string  `json:"occurred_at"`
}

// SyncJob represents the status of one sync run.
type SyncJob struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	State    string `json:"state"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Report   struct {
		Created   int `json:"created"`
		Updated   int `json:"updated"`
		Unchanged int `json:"unchanged"`
		Movements int `json:"movements"`
		Rollbacks int `json:"rollbacks"`
	} `json:"report"`
}

// TeamPerformance is the per-team analytics rollup.
type TeamPerformance struct {
	TeamID          string  `json:"team_id"`
	TeamName        string  `json:"team_name"`
	TotalItems      int     `json:"total_items"`
	CompletedItems  int     `json:"completed_items"`
	TotalPoints     int     `json:"total_points"`
	CompletedPoints int     `json:"completed_points"`
	CompletionRate  float64 `json:"completion_rate"`
}

// SLAReport summarizes due-date compliance.
type SLAReport struct {
	Total          int     `json:"total"`
	Breached       int     `json:"breached"`
	AtRisk         int     `json:"at_risk"`
	ComplianceRate float64 `json:"compliance_rate"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// StartSync kicks off a sync run for one source and returns the job id.
func (c *Client) StartSync(ctx context.Context, source string) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	endpoint := fmt.Sprintf("v0/sync/%s", url.PathEscape(source))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.JobID, err
}

// JobStatus fetches one sync job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (SyncJob, error) {
	var resp SyncJob
	endpoint := fmt.Sprintf("v0/sync/jobs/%s", url.PathEscape(jobID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StopJob asks a running sync job to stop at the next batch boundary.
func (c *Client) StopJob(ctx context.Context, jobID string) error {
	endpoint := fmt.Sprintf("v0/sync/jobs/%s/stop", url.PathEscape(jobID))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// Items lists work items, optionally filtered by status.
func (c *Client) Items(ctx context.Context, status string) ([]WorkItem, error) {
	endpoint := "v0/items"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []WorkItem
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ItemMovements lists the movement history of one work item.
func (c *Client) ItemMovements(ctx context.Context, itemID string) ([]Movement, error) {
	var resp []Movement
	endpoint := fmt.Sprintf("v0/items/%s/movements", url.PathEscape(itemID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AttachJustification annotates a movement.
func (c *Client) AttachJustification(ctx context.Context, movementID, justification string) (Movement, error) {
	var resp Movement
	endpoint := fmt.Sprintf("v0/movements/%s/justification", url.PathEscape(movementID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"justification": justification}, &resp)
	return resp, err
}

// TeamAnalytics returns the team performance rollup.
func (c *Client) TeamAnalytics(ctx context.Context) ([]TeamPerformance, error) {
	var resp []TeamPerformance
	err := c.do(ctx, http.MethodGet, "v0/analytics/teams", nil, &resp)
	return resp, err
}

// SLA returns the SLA compliance report.
func (c *Client) SLA(ctx context.Context) (SLAReport, error) {
	var resp SLAReport
	err := c.do(ctx, http.MethodGet, "v0/analytics/sla", nil, &resp)
	return resp, err
}

// PushItem delivers a single item change through the webhook intake.
func (c *Client) PushItem(ctx context.Context, source string, item map[string]any) error {
	endpoint := fmt.Sprintf("v0/webhooks/%s", url.PathEscape(source))
	return c.do(ctx, http.MethodPost, endpoint, item, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
