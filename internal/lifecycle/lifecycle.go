// Package lifecycle defines the search status graph. It is pure: persistence and
// the compare-and-swap guard live in the repositories and services packages.
package lifecycle

import (
	"fmt"
	"slices"
	"strings"
)

// Status is a search lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
	StatusDeleted    Status = "deleted"
)

// transitions is the complete edge set. Archived and deleted are terminal.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusSubmitted, StatusDeleted},
	StatusSubmitted:  {StatusProcessing, StatusDeleted},
	StatusProcessing: {StatusCompleted, StatusDeleted},
	StatusCompleted:  {StatusArchived, StatusDeleted},
	StatusArchived:   {},
	StatusDeleted:    {},
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusSubmitted, StatusProcessing, StatusCompleted, StatusArchived, StatusDeleted}
}

// Known reports whether s is a lifecycle state.
func Known(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// Allowed returns the states reachable from s in one step. Unknown and terminal
// states have none.
func Allowed(s Status) []Status {
	return slices.Clone(transitions[s])
}

// Terminal reports whether no transition leaves s.
func Terminal(s Status) bool {
	return Known(s) && len(transitions[s]) == 0
}

// Validate returns *InvalidTransitionError unless from -> to is an edge.
func Validate(from, to Status) error {
	if slices.Contains(transitions[from], to) {
		return nil
	}
	return &InvalidTransitionError{From: from, To: to, Allowed: Allowed(from)}
}

// InvalidTransitionError is returned for an edge outside the graph, including
// unknown target statuses.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("invalid status transition from %s to %s: %s is terminal", e.From, e.To, e.From)
	}
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid status transition from %s to %s (allowed: %s)", e.From, e.To, strings.Join(names, ", "))
}

// ConcurrentModificationError is returned when the persisted status or version
// changed between read and write.
type ConcurrentModificationError struct {
	SearchID        string
	ExpectedStatus  Status
	ExpectedVersion int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("search %s was modified concurrently (expected status %s at version %d)",
		e.SearchID, e.ExpectedStatus, e.ExpectedVersion)
}
