package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskType identifies which agent a task is routed to.
type TaskType string

const (
	TaskLinkedInSearch TaskType = "linkedin_search"
	TaskDirectoryScan  TaskType = "directory_scan"
	TaskWebsiteExtract TaskType = "website_extract"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskLinkedInSearch, TaskDirectoryScan, TaskWebsiteExtract:
		return true
	}
	return false
}

// Priority orders tasks for approval gating. High-priority tasks may require
// human sign-off before dispatch.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps a user-supplied string to a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Task is a single unit of scraping work. Tasks are immutable once queued;
// retry bookkeeping produces a copy rather than mutating in place.
type Task struct {
	ID          string            `json:"id"`
	Type        TaskType          `json:"type"`
	Target      string            `json:"target"` // URL or site identifier
	Query       string            `json:"query"`  // search terms for search-style tasks
	MaxResults  int               `json:"max_results"`
	Filters     map[string]string `json:"filters,omitempty"` // extraction narrowing criteria, e.g. location
	Priority    Priority          `json:"priority"`
	RetryBudget int               `json:"retry_budget"` // remaining retries, decremented per requeue
	Attempt     int               `json:"attempt"`      // 0 on first dispatch
	CreatedAt   time.Time         `json:"created_at"`
}

// TaskOption customizes a task built by NewTask.
type TaskOption func(*Task)

// WithQuery sets the search query.
func WithQuery(q string) TaskOption {
	return func(t *Task) { t.Query = q }
}

// WithMaxResults caps how many records the agent may extract.
func WithMaxResults(n int) TaskOption {
	return func(t *Task) {
		if n > 0 {
			t.MaxResults = n
		}
	}
}

// WithPriority sets the task priority.
func WithPriority(p Priority) TaskOption {
	return func(t *Task) { t.Priority = p }
}

// WithFilters attaches narrowing criteria the agent folds into its
// extraction instructions.
func WithFilters(filters map[string]string) TaskOption {
	return func(t *Task) {
		if len(filters) > 0 {
			t.Filters = filters
		}
	}
}

// WithRetryBudget overrides the default retry budget.
func WithRetryBudget(n int) TaskOption {
	return func(t *Task) {
		if n >= 0 {
			t.RetryBudget = n
		}
	}
}

// DefaultRetryBudget is the number of requeues a task gets unless overridden.
const DefaultRetryBudget = 2

// DefaultMaxResults bounds extraction when the caller does not say otherwise.
const DefaultMaxResults = 20

// NewTask builds a task with a fresh id and defaults applied.
func NewTask(typ TaskType, target string, opts ...TaskOption) Task {
	t := Task{
		ID:          uuid.NewString(),
		Type:        typ,
		Target:      target,
		MaxResults:  DefaultMaxResults,
		Priority:    PriorityMedium,
		RetryBudget: DefaultRetryBudget,
		CreatedAt:   time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// WithDecrementedRetry returns a copy of the task with one less retry in the
// budget and the attempt counter advanced. The receiver is unchanged.
func (t Task) WithDecrementedRetry() Task {
	c := t
	c.RetryBudget--
	c.Attempt++
	return c
}

// CanRetry reports whether the task has budget left for another attempt.
func (t Task) CanRetry() bool {
	return t.RetryBudget > 0
}
