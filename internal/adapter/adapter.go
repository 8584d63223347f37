// Package adapter fetches raw work items from external issue-tracking
// platforms and normalizes them into canonical shapes.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"govpulse/internal/domain"
)

// ErrUnreachable marks a source-level failure (network, auth): the whole
// sync run fails. Per-item problems are ItemError instead.
var ErrUnreachable = errors.New("source unreachable")

// ItemError marks one malformed remote record. ListWorkItems converts
// these into skipped entries so the run continues past them.
type ItemError struct {
	ExternalKey string
	Reason      string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s", e.ExternalKey, e.Reason)
}

func itemFailure(err error) domain.ItemFailure {
	var ie *ItemError
	if errors.As(err, &ie) {
		return domain.ItemFailure{ExternalKey: ie.ExternalKey, Reason: ie.Reason}
	}
	return domain.ItemFailure{ExternalKey: "?", Reason: err.Error()}
}

// HistoryEntry is one raw status transition from a remote changelog.
type HistoryEntry struct {
	At         time.Time `json:"at"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor,omitempty"`
}

// Source is the per-platform adapter contract. Implementations are
// stateless per call and own retry/backoff for transient failures.
// ListWorkItems returns the records it could normalize alongside
// skipped-item failures; its error return is reserved for source-level
// problems that should fail the run.
type Source interface {
	Name() string
	Authenticate(ctx context.Context) error
	ListProjects(ctx context.Context) ([]domain.ExternalProject, error)
	ListWorkItems(ctx context.Context, projectKey string) ([]domain.NormalizedWorkItem, []domain.ItemFailure, error)
	ListHistory(ctx context.Context, externalKey string) ([]HistoryEntry, error)
}

// Options selects and configures a source variant. Mode decides between
// the live HTTP client and the deterministic stub at construction time.
type Options struct {
	Name        string
	Kind        string // tracker | desk
	Mode        string // live | stub
	BaseURL     string
	Token       string
	ProjectKeys []string
	Timeout     time.Duration
}

// New builds a source from options.
func New(opts Options) (Source, error) {
	if opts.Name == "" {
		return nil, errors.New("source name is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	switch opts.Mode {
	case "stub":
		return NewStub(opts.Name, opts.ProjectKeys), nil
	case "live", "":
		switch opts.Kind {
		case "tracker":
			return newTrackerClient(opts), nil
		case "desk":
			return newDeskClient(opts), nil
		default:
			return nil, fmt.Errorf("unknown source kind %q", opts.Kind)
		}
	default:
		return nil, fmt.Errorf("unknown source mode %q", opts.Mode)
	}
}
