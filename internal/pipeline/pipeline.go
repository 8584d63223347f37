// Package pipeline defines the canonical status ordering and classifies
// transitions between statuses.
package pipeline

import "fmt"

// Canonical statuses in pipeline order. StatusRollback is a marker status
// outside the monotonic ordering: transitions into it are always
// rollbacks regardless of where the item was.
const (
	StatusTodo         = "todo"
	StatusInProgress   = "in_progress"
	StatusReview       = "review"
	StatusQATest       = "qa_test"
	StatusReadyForLive = "ready_for_live"
	StatusLive         = "live"
	StatusRollback     = "rollback"
)

// Ordered is the fixed delivery pipeline. Not user-configurable.
var Ordered = []string{
	StatusTodo,
	StatusInProgress,
	StatusReview,
	StatusQATest,
	StatusReadyForLive,
	StatusLive,
}

var ranks = func() map[string]int {
	m := make(map[string]int, len(Ordered))
	for i, s := range Ordered {
		m[s] = i
	}
	return m
}()

type Classification string

const (
	Forward  Classification = "forward"
	Lateral  Classification = "lateral"
	Rollback Classification = "rollback"
)

// IsValid reports whether s is a member of the canonical pipeline or the
// rollback marker.
func IsValid(s string) bool {
	if s == StatusRollback {
		return true
	}
	_, ok := ranks[s]
	return ok
}

// IsTerminal reports whether a work item in status s counts as delivered
// for SLA purposes.
func IsTerminal(s string) bool {
	return s == StatusLive
}

// Rank returns the pipeline position of s. The rollback marker has no rank.
func Rank(s string) (int, error) {
	r, ok := ranks[s]
	if !ok {
		return 0, fmt.Errorf("status %q has no pipeline rank", s)
	}
	return r, nil
}

// Ownership levels group pipeline stages by who owns the item: triage
// holds it before work starts, engineering through testing, release from
// staging onward. Movements crossing a boundary upward feed escalation
// derivation.
const (
	LevelTriage      = "triage"
	LevelEngineering = "engineering"
	LevelRelease     = "release"
)

var levelOrder = map[string]int{
	LevelTriage:      0,
	LevelEngineering: 1,
	LevelRelease:     2,
}

// OwnershipLevel returns the owning tier for a status. The rollback
// marker maps back to triage: a rolled-back item needs re-triage.
func OwnershipLevel(s string) string {
	switch s {
	case StatusTodo, StatusRollback:
		return LevelTriage
	case StatusInProgress, StatusReview, StatusQATest:
		return LevelEngineering
	case StatusReadyForLive, StatusLive:
		return LevelRelease
	default:
		return ""
	}
}

// CrossesLevelUp reports whether moving from one status to another hands
// the item to a higher ownership tier.
func CrossesLevelUp(from, to string) bool {
	a, okA := levelOrder[OwnershipLevel(from)]
	b, okB := levelOrder[OwnershipLevel(to)]
	return okA && okB && b > a
}

// Classify compares two statuses against the pipeline ordering. A move to
// the rollback marker is always Rollback; otherwise the ranks decide.
func Classify(from, to string) (Classification, error) {
	if to == StatusRollback {
		return Rollback, nil
	}
	fromRank, err := Rank(from)
	if err != nil {
		if from == StatusRollback {
			// Recovering out of the marker re-enters the pipeline.
			return Forward, nil
		}
		return "", err
	}
	toRank, err := Rank(to)
	if err != nil {
		return "", err
	}
	switch {
	case toRank < fromRank:
		return Rollback, nil
	case toRank == fromRank:
		return Lateral, nil
	default:
		return Forward, nil
	}
}
