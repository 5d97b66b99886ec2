package engine

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/internal/store"
)

// --- Agent stub ---

// stubAgent counts dispatches per task id and delegates to execute. A nil
// execute succeeds with no records.
type stubAgent struct {
	kind       model.TaskType
	execute    func(ctx context.Context, task model.Task) ([]model.Contact, error)
	dispatched []string
	perTask    map[string]int
}

func (s *stubAgent) Kind() model.TaskType { return s.kind }

func (s *stubAgent) Execute(ctx context.Context, task model.Task) ([]model.Contact, error) {
	if s.perTask == nil {
		s.perTask = make(map[string]int)
	}
	s.perTask[task.ID]++
	s.dispatched = append(s.dispatched, task.ID)
	if s.execute == nil {
		return nil, nil
	}
	return s.execute(ctx, task)
}

// --- Approver stub ---

type stubApprover struct {
	approved bool
	err      error
	calls    int
}

func (s *stubApprover) Approve(ctx context.Context, task model.Task) (bool, error) {
	s.calls++
	return s.approved, s.err
}

// --- Store mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) CreateRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.Report) error {
	args := m.Called(ctx, runID, status, report)
	return args.Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, cause string) error {
	args := m.Called(ctx, runID, cause)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) InsertContacts(ctx context.Context, runID string, records []model.Contact) error {
	args := m.Called(ctx, runID, records)
	return args.Error(0)
}

func (m *mockStore) ListContacts(ctx context.Context, runID string) ([]model.Contact, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *mockStore) CountRuns(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CountContacts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
