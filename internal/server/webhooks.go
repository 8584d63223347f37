package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"govpulse/internal/config"
	"govpulse/internal/domain"
	"govpulse/internal/reconcile"
)

// registerWebhooks exposes a push intake so an external platform can
// report a single item change without waiting for the next sync run.
// The payload goes through the same reconcile path as a batch, so the
// idempotence and movement guarantees hold for pushed items too.
func registerWebhooks(api huma.API, e reconcile.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "webhook-intake",
		Method:      http.MethodPost,
		Path:        "/webhooks/{source}",
		Summary:     "Reconcile one pushed work item",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Source string             `path:"source"`
		Body   WebhookItemRequest `json:"body"`
	}) (*struct {
		Body domain.ReconciliationReport `json:"body"`
	}, error) {
		if err := requireCapability(ctx, config.CapItemsWrite); err != nil {
			return nil, err
		}
		if input.Body.ExternalKey == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "external_key is required", nil)
		}
		report, err := e.ReconcileBatch(ctx, input.Source, []domain.NormalizedWorkItem{input.Body.normalized()})
		if err != nil {
			return nil, handleError(err)
		}
		if len(report.Failures) > 0 {
			return nil, newAPIError(http.StatusUnprocessableEntity, "validation_failed", report.Failures[0].Reason,
				map[string]any{"external_key": report.Failures[0].ExternalKey})
		}
		return &struct {
			Body domain.ReconciliationReport `json:"body"`
		}{Body: report}, nil
	})
}
