package adapter

import (
	"context"
	"fmt"
	"time"

	"govpulse/internal/domain"
)

// Stub is the deterministic in-memory source variant, selected by
// config for demos and tests. Fixtures can be replaced per instance.
type Stub struct {
	SourceName string
	Projects   []domain.ExternalProject
	Items      map[string][]domain.NormalizedWorkItem
	History    map[string][]HistoryEntry

	// Fail simulates an unreachable platform when set.
	Fail bool
}

func NewStub(name string, projectKeys []string) *Stub {
	s := &Stub{
		SourceName: name,
		Items:      map[string][]domain.NormalizedWorkItem{},
		History:    map[string][]HistoryEntry{},
	}
	if len(projectKeys) == 0 {
		projectKeys = []string{"DEMO"}
	}
	for i, key := range projectKeys {
		s.Projects = append(s.Projects, domain.ExternalProject{Key: key, Name: key})
		s.Items[key] = demoItems(name, key, i)
	}
	return s
}

func demoItems(source, projectKey string, seed int) []domain.NormalizedWorkItem {
	statuses := []string{"todo", "in_progress", "review", "qa_test", "live"}
	items := make([]domain.NormalizedWorkItem, 0, len(statuses))
	for i, status := range statuses {
		items = append(items, domain.NormalizedWorkItem{
			ExternalKey: fmt.Sprintf("%s-%d", projectKey, seed*100+i+1),
			Kind:        "ticket",
			Title:       fmt.Sprintf("%s demo item %d", source, i+1),
			Status:      status,
			Priority:    "medium",
			Complexity:  i%4 + 1,
			Risk:        (i+1)%4 + 1,
			ProjectKey:  projectKey,
		})
	}
	return items
}

func (s *Stub) Name() string { return s.SourceName }

func (s *Stub) Authenticate(ctx context.Context) error {
	if s.Fail {
		return fmt.Errorf("%w: stub configured to fail", ErrUnreachable)
	}
	return nil
}

func (s *Stub) ListProjects(ctx context.Context) ([]domain.ExternalProject, error) {
	if s.Fail {
		return nil, fmt.Errorf("%w: stub configured to fail", ErrUnreachable)
	}
	return s.Projects, nil
}

func (s *Stub) ListWorkItems(ctx context.Context, projectKey string) ([]domain.NormalizedWorkItem, []domain.ItemFailure, error) {
	if s.Fail {
		return nil, nil, fmt.Errorf("%w: stub configured to fail", ErrUnreachable)
	}
	return s.Items[projectKey], nil, nil
}

func (s *Stub) ListHistory(ctx context.Context, externalKey string) ([]HistoryEntry, error) {
	if s.Fail {
		return nil, fmt.Errorf("%w: stub configured to fail", ErrUnreachable)
	}
	h := s.History[externalKey]
	if h == nil {
		h = []HistoryEntry{{At: time.Now().UTC(), FromStatus: "todo", ToStatus: "in_progress"}}
	}
	return h, nil
}
