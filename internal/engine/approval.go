package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/model"
)

// Approver is an external decision maker for high-priority tasks. Approve
// may block while a human or an upstream system weighs in; implementations
// must honor ctx.
type Approver interface {
	Approve(ctx context.Context, task model.Task) (bool, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, task model.Task) (bool, error)

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, task model.Task) (bool, error) {
	return f(ctx, task)
}

// Gate decides whether a task may be dispatched. Low-priority tasks and
// retries pass automatically; high-priority first attempts consult the
// external approver when one is configured.
type Gate struct {
	autoApprovePreviews bool
	approver            Approver
	nowFunc             func() time.Time
}

// NewGate builds an approval gate. approver may be nil, in which case
// high-priority tasks fall through to the default approval.
func NewGate(autoApprovePreviews bool, approver Approver) *Gate {
	return &Gate{
		autoApprovePreviews: autoApprovePreviews,
		approver:            approver,
		nowFunc:             time.Now,
	}
}

// Decide evaluates the approval policy for one task. Every call produces an
// audit event, whatever the outcome. The error is non-nil only when a
// configured external approver failed; the returned event then carries the
// denial.
func (g *Gate) Decide(ctx context.Context, task model.Task) (model.ApprovalEvent, error) {
	evt := model.ApprovalEvent{
		TaskID:   task.ID,
		TaskType: task.Type,
		At:       g.nowFunc().UTC(),
	}

	var err error
	switch {
	case task.Priority == model.PriorityLow:
		evt.Action = model.ApprovalAutoLowPriority
		evt.Approved = true
	case task.Attempt > 0:
		evt.Action = model.ApprovalAutoRetry
		evt.Approved = true
	case task.Priority == model.PriorityHigh && !g.autoApprovePreviews && g.approver != nil:
		evt.Action = model.ApprovalExternal
		evt.Approved, err = g.approver.Approve(ctx, task)
		if err != nil {
			evt.Approved = false
		}
	default:
		evt.Action = model.ApprovalAutoDefault
		evt.Approved = true
	}

	zap.L().Info("approval decision",
		zap.String("task_id", evt.TaskID),
		zap.String("task_type", string(evt.TaskType)),
		zap.String("action", string(evt.Action)),
		zap.Bool("approved", evt.Approved),
		zap.Error(err),
	)
	return evt, err
}
