package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of an orchestration run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusMerging   RunStatus = "merging"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run ties a batch of tasks to its eventual report for persistence.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Tasks     []Task    `json:"tasks"`
	Report    *Report   `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRun builds a queued run for the given tasks.
func NewRun(tasks []Task) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        uuid.NewString(),
		Status:    RunStatusQueued,
		Tasks:     tasks,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApprovalAction labels what the approval gate did with a task.
type ApprovalAction string

const (
	ApprovalAutoLowPriority ApprovalAction = "auto_low_priority"
	ApprovalAutoRetry       ApprovalAction = "auto_retry"
	ApprovalAutoDefault     ApprovalAction = "auto_default"
	ApprovalExternal        ApprovalAction = "external"
)

// ApprovalEvent is the audit record for one gate decision. Every decision,
// automatic or external, produces exactly one event.
type ApprovalEvent struct {
	TaskID   string         `json:"task_id"`
	TaskType TaskType       `json:"task_type"`
	Action   ApprovalAction `json:"action"`
	Approved bool           `json:"approved"`
	At       time.Time      `json:"at"`
}

// Metrics aggregates execution counters for one run.
type Metrics struct {
	TasksSubmitted      int            `json:"tasks_submitted"`
	Dispatches          int            `json:"dispatches"`
	Retries             int            `json:"retries"`
	ValidationDrops     int            `json:"validation_drops"`
	DuplicatesCollapsed int            `json:"duplicates_collapsed"`
	StateTransitions    map[string]int `json:"state_transitions"`
	Duration            time.Duration  `json:"duration"`
	CacheHits           uint64         `json:"cache_hits"`
	CacheMisses         uint64         `json:"cache_misses"`
	CacheHitRate        float64        `json:"cache_hit_rate"`
}

// Report is the terminal output of a run: the merged record set plus
// everything that went wrong along the way. A run that hit failures still
// produces a report; Errors carries the human-readable trail.
type Report struct {
	RunID            string          `json:"run_id"`
	Records          []Contact       `json:"records"`
	Errors           []string        `json:"errors,omitempty"`
	CompletedTaskIDs []string        `json:"completed_task_ids"`
	Approvals        []ApprovalEvent `json:"approvals,omitempty"`
	Metrics          Metrics         `json:"metrics"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}
