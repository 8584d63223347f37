package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"govpulse/internal/analytics"
	"govpulse/internal/config"
	"govpulse/internal/domain"
	"govpulse/internal/reconcile"
	"govpulse/internal/repo"
	"govpulse/internal/syncjob"
)

// Config for the HTTP API handler.
type Config struct {
	Reconcile    reconcile.Engine
	Analytics    analytics.Engine
	Orchestrator *syncjob.Orchestrator
	Jobs         *syncjob.Registry
	BasePath     string
	Auth         AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"sync_busy"`
	Message string         `json:"message" example:"a sync is already running for this source"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the GovPulse API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("GovPulse API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerSync(group, cfg.Orchestrator, cfg.Jobs)
	registerItems(group, cfg.Reconcile)
	registerMovements(group, cfg.Reconcile)
	registerProjects(group, cfg.Reconcile)
	registerTeams(group, cfg.Reconcile)
	registerAnalytics(group, cfg.Analytics)
	registerEscalations(group, cfg.Reconcile)
	registerWebhooks(group, cfg.Reconcile)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if se, ok := err.(huma.StatusError); ok {
		return se
	}
	if errors.Is(err, syncjob.ErrSyncBusy) {
		return newAPIError(http.StatusConflict, "sync_busy", err.Error(), nil)
	}
	if errors.Is(err, syncjob.ErrUnknownSource) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case strings.Contains(lowered, "already") || strings.Contains(lowered, "not pending"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerSync(api huma.API, o *syncjob.Orchestrator, jobs *syncjob.Registry) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-sync",
		Method:        http.MethodPost,
		Path:          "/sync/{source}",
		Summary:       "Start a sync run for one source",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusConflict, http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Source string `path:"source"`
	}) (*struct {
		Body SyncStartResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapSyncRun); err != nil {
			return nil, err
		}
		jobID, err := o.Start(ctx, input.Source)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SyncStartResponse `json:"body"`
		}{Body: SyncStartResponse{JobID: jobID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sync-jobs",
		Method:      http.MethodGet,
		Path:        "/sync/jobs",
		Summary:     "List sync jobs, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []JobResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapSyncRun); err != nil {
			return nil, err
		}
		return &struct {
			Body []JobResponse `json:"body"`
		}{Body: mapJobs(jobs.List())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-sync-job",
		Method:      http.MethodGet,
		Path:        "/sync/jobs/{job_id}",
		Summary:     "Get one sync job",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapSyncRun); err != nil {
			return nil, err
		}
		job, ok := jobs.Get(input.JobID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("no job %s", input.JobID), nil)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-sync-job",
		Method:      http.MethodPost,
		Path:        "/sync/jobs/{job_id}/stop",
		Summary:     "Ask a running sync job to stop at the next batch boundary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapSyncRun); err != nil {
			return nil, err
		}
		if err := o.Stop(input.JobID); err != nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "stopping"}}, nil
	})
}

func registerItems(api huma.API, e reconcile.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-items",
		Method:      http.MethodGet,
		Path:        "/items",
		Summary:     "List work items",
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		Source    string `query:"source"`
		Status    string `query:"status"`
		Kind      string `query:"kind"`
		Assignee  string `query:"assignee_id"`
		Limit     int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body []domain.WorkItem `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		limit := input.Limit
		if limit == 0 {
			limit = 100
		}
		items, err := e.Repo.ListWorkItems(ctx, repo.WorkItemFilters{
			ProjectID:  input.ProjectID,
			Source:     input.Source,
			Status:     input.Status,
			Kind:       input.Kind,
			AssigneeID: input.Assignee,
			Limit:      limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/items/{item_id}",
		Summary:     "Get one work item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID string `path:"item_id"`
	}) (*struct {
		Body domain.WorkItem `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		w, err := e.Repo.GetWorkItem(ctx, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkItem `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-item-movements",
		Method:      http.MethodGet,
		Path:        "/items/{item_id}/movements",
		Summary:     "List movements of one work item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID string `path:"item_id"`
	}) (*struct {
		Body []domain.Movement `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		if _, err := e.Repo.GetWorkItem(ctx, input.ItemID); err != nil {
			return nil, handleError(err)
		}
		movements, err := e.Repo.ListMovements(ctx, repo.MovementFilters{WorkItemID: input.ItemID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Movement `json:"body"`
		}{Body: movements}, nil
	})
}

func registerMovements(api huma.API, e reconcile.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-movements",
		Method:      http.MethodGet,
		Path:        "/movements",
		Summary:     "List movements",
	}, func(ctx context.Context, input *struct {
		RollbackOnly  bool   `query:"rollback_only"`
		OccurredAfter string `query:"occurred_after"`
		Limit         int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body []domain.Movement `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		limit := input.Limit
		if limit == 0 {
			limit = 100
		}
		movements, err := e.Repo.ListMovements(ctx, repo.MovementFilters{
			RollbackOnly:  input.RollbackOnly,
			OccurredAfter: input.OccurredAfter,
			Limit:         limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Movement `json:"body"`
		}{Body: movements}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-justification",
		Method:      http.MethodPost,
		Path:        "/movements/{movement_id}/justification",
		Summary:     "Attach a reviewer justification to a movement",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		MovementID string               `path:"movement_id"`
		Body       JustificationRequest `json:"body"`
	}) (*struct {
		Body domain.Movement `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsWrite); err != nil {
			return nil, err
		}
		if strings.TrimSpace(input.Body.Justification) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "justification is required", nil)
		}
		p, _ := principalFromContext(ctx)
		m, err := e.AttachJustification(ctx, input.MovementID, input.Body.Justification, p.Subject)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Movement `json:"body"`
		}{Body: m}, nil
	})
}

func registerProjects(api huma.API, e reconcile.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects with their cached aggregations",
	}, func(ctx context.Context, input *struct {
		TeamID string `query:"team_id"`
	}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		projects, err := e.Repo.ListProjects(ctx, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get one project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recalculate-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/recalculate",
		Summary:     "Recompute the project aggregation from its work items",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsWrite); err != nil {
			return nil, err
		}
		if err := e.RecalculateProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})
}

func registerTeams(api huma.API, e reconcile.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/teams",
		Summary:     "List teams",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Team `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		teams, err := e.Repo.ListTeams(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Team `json:"body"`
		}{Body: teams}, nil
	})
}

func registerAnalytics(api huma.API, a analytics.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "analytics-teams",
		Method:      http.MethodGet,
		Path:        "/analytics/teams",
		Summary:     "Team performance rollup",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []analytics.TeamPerformance `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapAnalyticsRead); err != nil {
			return nil, err
		}
		perf, err := a.TeamPerformance(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []analytics.TeamPerformance `json:"body"`
		}{Body: perf}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-rollbacks",
		Method:      http.MethodGet,
		Path:        "/analytics/rollbacks",
		Summary:     "Rollback statistics over a window",
	}, func(ctx context.Context, input *struct {
		Days int `query:"days" minimum:"1" maximum:"365"`
	}) (*struct {
		Body analytics.RollbackStats `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapAnalyticsRead); err != nil {
			return nil, err
		}
		days := input.Days
		if days == 0 {
			days = 30
		}
		since := a.Now().AddDate(0, 0, -days)
		stats, err := a.RollbackStats(ctx, since)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body analytics.RollbackStats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-sla",
		Method:      http.MethodGet,
		Path:        "/analytics/sla",
		Summary:     "SLA compliance report",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body analytics.SLAReport `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapAnalyticsRead); err != nil {
			return nil, err
		}
		report, err := a.SLAReport(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body analytics.SLAReport `json:"body"`
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-trends",
		Method:      http.MethodGet,
		Path:        "/analytics/trends",
		Summary:     "Daily movement trend series",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From string `query:"from" format:"date"`
		To   string `query:"to" format:"date"`
	}) (*struct {
		Body []analytics.TrendPoint `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapAnalyticsRead); err != nil {
			return nil, err
		}
		now := a.Now().UTC()
		from, to := now.AddDate(0, 0, -13), now
		if input.From != "" {
			parsed, err := time.Parse("2006-01-02", input.From)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid from date", nil)
			}
			from = parsed
		}
		if input.To != "" {
			parsed, err := time.Parse("2006-01-02", input.To)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid to date", nil)
			}
			to = parsed
		}
		series, err := a.Trend(ctx, from, to)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []analytics.TrendPoint `json:"body"`
		}{Body: series}, nil
	})
}

func registerEscalations(api huma.API, e reconcile.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-escalations",
		Method:      http.MethodGet,
		Path:        "/escalations",
		Summary:     "List escalations",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Limit  int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body []domain.Escalation `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsRead); err != nil {
			return nil, err
		}
		escalations, err := e.Repo.ListEscalations(ctx, repo.EscalationFilters{
			Status: input.Status,
			Limit:  input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Escalation `json:"body"`
		}{Body: escalations}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-escalations",
		Method:      http.MethodPost,
		Path:        "/escalations/sync",
		Summary:     "Derive escalations from movement history",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsWrite); err != nil {
			return nil, err
		}
		created, err := e.SyncEscalations(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: map[string]int{"created": created}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-escalation",
		Method:      http.MethodPost,
		Path:        "/escalations/{escalation_id}/resolve",
		Summary:     "Resolve or dismiss a pending escalation",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EscalationID string                   `path:"escalation_id"`
		Body         ResolveEscalationRequest `json:"body"`
	}) (*struct {
		Body domain.Escalation `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsWrite); err != nil {
			return nil, err
		}
		p, _ := principalFromContext(ctx)
		esc, err := e.ResolveEscalation(ctx, input.EscalationID, input.Body.Status, input.Body.Resolution, p.Subject)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Escalation `json:"body"`
		}{Body: esc}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>GovPulse API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}
