package server

import (
	"govpulse/internal/domain"
	"govpulse/internal/syncjob"
)

// Request payloads

type WebhookItemRequest struct {
	ExternalKey string  `json:"external_key"`
	Kind        string  `json:"kind" enum:"ticket,incident,service_request"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority" enum:"critical,high,medium,low"`
	Complexity  int     `json:"complexity" minimum:"1" maximum:"4"`
	Risk        int     `json:"risk" minimum:"1" maximum:"4"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	Actor       string  `json:"actor,omitempty"`
	ProjectKey  string  `json:"project_key"`
}

func (r WebhookItemRequest) normalized() domain.NormalizedWorkItem {
	return domain.NormalizedWorkItem{
		ExternalKey: r.ExternalKey,
		Kind:        r.Kind,
		Title:       r.Title,
		Status:      r.Status,
		Priority:    r.Priority,
		Complexity:  r.Complexity,
		Risk:        r.Risk,
		AssigneeID:  r.AssigneeID,
		Actor:       r.Actor,
		ProjectKey:  r.ProjectKey,
	}
}

type JustificationRequest struct {
	Justification string `json:"justification"`
}

type ResolveEscalationRequest struct {
	Status     string `json:"status" enum:"resolved,dismissed"`
	Resolution string `json:"resolution,omitempty"`
}

// Response payloads

type SyncStartResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID         string                      `json:"id"`
	Source     string                      `json:"source"`
	State      string                      `json:"state" enum:"queued,running,completed,failed"`
	Progress   int                         `json:"progress"`
	Message    string                      `json:"message,omitempty"`
	Report     domain.ReconciliationReport `json:"report"`
	StartedAt  string                      `json:"started_at" format:"date-time"`
	FinishedAt string                      `json:"finished_at,omitempty" format:"date-time"`
}

func jobResponse(j syncjob.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Source:     j.Source,
		State:      string(j.State),
		Progress:   j.Progress,
		Message:    j.Message,
		Report:     j.Report,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

func mapJobs(jobs []syncjob.Job) []JobResponse {
	res := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		res = append(res, jobResponse(j))
	}
	return res
}
