package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector-cli/internal/model"
)

// ErrNotFound is returned when a run id has no row.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for scrape runs and the contact
// records they produce. The engine treats every call as best effort; a nil
// Store disables persistence entirely.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.Report) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Contacts
	InsertContacts(ctx context.Context, runID string, records []model.Contact) error
	ListContacts(ctx context.Context, runID string) ([]model.Contact, error)

	// Totals
	CountRuns(ctx context.Context) (int, error)
	CountContacts(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
