// Package engine drives scrape runs through an explicit state machine:
// tasks are routed one at a time to their agent, failures consume the
// task's own retry budget, and the surviving records are validated and
// merged into the final report.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/agents"
	"github.com/sells-group/prospector-cli/internal/cache"
	"github.com/sells-group/prospector-cli/internal/dedupe"
	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/internal/store"
	"github.com/sells-group/prospector-cli/internal/validate"
)

// Config holds the orchestration policy knobs.
type Config struct {
	// RequireApproval routes high-priority first attempts through the
	// approval gate before dispatch.
	RequireApproval bool
	// AutoApprovePreviews resolves gated tasks without consulting the
	// external approver.
	AutoApprovePreviews bool
}

// Deps are the collaborators an Engine needs. Agents and Validator are
// required; Cache feeds the report's hit/miss metrics; Store and Approver
// may be nil.
type Deps struct {
	Agents    *agents.Registry
	Cache     *cache.Cache
	Validator *validate.Validator
	Store     store.Store
	Approver  Approver
}

// Engine executes batches of scrape tasks. A single Engine is safe for
// concurrent runs; all per-run state lives on the run, never the Engine.
type Engine struct {
	cfg  Config
	deps Deps
	gate *Gate
}

// New builds an Engine from its dependencies.
func New(cfg Config, deps Deps) *Engine {
	return &Engine{
		cfg:  cfg,
		deps: deps,
		gate: NewGate(cfg.AutoApprovePreviews, deps.Approver),
	}
}

// runState is the mutable working set of one run. Tasks move between the
// pending queue, the current slot, and the completed list; a task is in
// exactly one of them at any time.
type runState struct {
	queue   *taskQueue
	current *model.Task
	gated   bool
	records []model.Contact
	report  *model.Report
	log     *zap.Logger
}

func (rs *runState) complete(t model.Task) {
	rs.report.CompletedTaskIDs = append(rs.report.CompletedTaskIDs, t.ID)
}

func (rs *runState) fail(format string, args ...any) {
	rs.report.Errors = append(rs.report.Errors, fmt.Sprintf(format, args...))
}

// Run executes a fresh batch of tasks as a new run.
func (e *Engine) Run(ctx context.Context, tasks []model.Task) (*model.Report, error) {
	run := model.NewRun(tasks)
	if e.deps.Store != nil {
		if err := e.deps.Store.CreateRun(ctx, run); err != nil {
			zap.L().Warn("engine: failed to record run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return e.Process(ctx, run)
}

// Process drives an already-recorded run through the state machine and
// returns its report. Partial failure is not an error: failed tasks and
// dropped records surface as strings in Report.Errors, and the run always
// finishes with whatever records survived.
func (e *Engine) Process(ctx context.Context, run *model.Run) (*model.Report, error) {
	if e.deps.Agents == nil || e.deps.Validator == nil {
		return nil, eris.New("engine: agents registry and validator are required")
	}

	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("engine: run starting", zap.Int("tasks", len(run.Tasks)))

	rs := &runState{
		queue: newTaskQueue(run.Tasks),
		report: &model.Report{
			RunID:     run.ID,
			StartedAt: time.Now().UTC(),
			Metrics: model.Metrics{
				TasksSubmitted:   len(run.Tasks),
				StateTransitions: make(map[string]int),
			},
		},
		log: log,
	}

	e.setStatus(ctx, rs, run, model.RunStatusRunning)

	st := stateRoute
	rs.report.Metrics.StateTransitions[st.String()]++
	for st != stateDone {
		var next state
		switch st {
		case stateRoute:
			next = e.route(ctx, rs)
		case stateDispatch:
			next = e.dispatch(ctx, rs)
		case stateApproval:
			next = e.approve(ctx, rs)
		case stateValidate:
			next = e.validate(rs)
		case stateMerge:
			e.setStatus(ctx, rs, run, model.RunStatusMerging)
			next = e.merge(rs)
		}
		rs.report.Metrics.StateTransitions[next.String()]++
		st = next
	}

	rs.report.FinishedAt = time.Now().UTC()
	rs.report.Metrics.Duration = rs.report.FinishedAt.Sub(rs.report.StartedAt)
	if e.deps.Cache != nil {
		cs := e.deps.Cache.Stats()
		rs.report.Metrics.CacheHits = cs.Hits
		rs.report.Metrics.CacheMisses = cs.Misses
		rs.report.Metrics.CacheHitRate = cs.HitRate
	}

	e.finish(ctx, rs, run)

	log.Info("engine: run finished",
		zap.String("status", string(run.Status)),
		zap.Int("records", len(rs.report.Records)),
		zap.Int("errors", len(rs.report.Errors)),
		zap.Int("dispatches", rs.report.Metrics.Dispatches),
		zap.Duration("duration", rs.report.Metrics.Duration),
	)
	return rs.report, nil
}

// route picks the next transition. Cancellation is checked here, at task
// boundaries, so a running agent is never interrupted mid-extraction.
func (e *Engine) route(ctx context.Context, rs *runState) state {
	if err := ctx.Err(); err != nil {
		abandoned := rs.queue.Len()
		if rs.current != nil {
			abandoned++
		}
		rs.fail("run cancelled with %d tasks unprocessed: %v", abandoned, err)
		rs.current = nil
		rs.gated = false
		return stateMerge
	}
	if rs.gated {
		return stateApproval
	}
	if rs.current != nil {
		// Approved and waiting for dispatch.
		return stateDispatch
	}

	task, ok := rs.queue.Pop()
	if !ok {
		return stateMerge
	}
	rs.current = &task
	if e.cfg.RequireApproval && task.Priority == model.PriorityHigh && task.Attempt == 0 {
		rs.gated = true
		return stateApproval
	}
	return stateDispatch
}

// dispatch runs the current task's agent. Failures either requeue the task
// with one less retry or, once the budget is spent, settle it with a
// recorded error. They never abort the run.
func (e *Engine) dispatch(ctx context.Context, rs *runState) state {
	task := *rs.current
	rs.current = nil

	agent, err := e.deps.Agents.Get(task.Type)
	if err != nil {
		// No budget spent: retrying an unroutable task cannot help.
		rs.fail("task %s: %v", task.ID, err)
		rs.complete(task)
		return stateValidate
	}

	rs.report.Metrics.Dispatches++
	records, err := agent.Execute(ctx, task)
	if err != nil {
		if task.CanRetry() {
			retry := task.WithDecrementedRetry()
			rs.queue.Push(retry)
			rs.report.Metrics.Retries++
			rs.fail("task %s (%s) attempt %d failed: %v (requeued, %d retries left)",
				task.ID, task.Type, task.Attempt+1, err, retry.RetryBudget)
			rs.log.Warn("engine: dispatch failed, task requeued",
				zap.String("task_id", task.ID),
				zap.Int("retries_left", retry.RetryBudget),
				zap.Error(err),
			)
		} else {
			rs.fail("task %s (%s) attempt %d failed: %v (retry budget exhausted)",
				task.ID, task.Type, task.Attempt+1, err)
			rs.complete(task)
			rs.log.Error("engine: dispatch failed, retry budget exhausted",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
		return stateValidate
	}

	rs.records = append(rs.records, records...)
	rs.complete(task)
	rs.log.Info("engine: task complete",
		zap.String("task_id", task.ID),
		zap.String("task_type", string(task.Type)),
		zap.Int("records", len(records)),
	)
	return stateValidate
}

// approve resolves the gate for the current task. Denial settles the task
// without dispatching it; an approver failure counts as denial.
func (e *Engine) approve(ctx context.Context, rs *runState) state {
	task := *rs.current
	rs.gated = false

	evt, err := e.gate.Decide(ctx, task)
	rs.report.Approvals = append(rs.report.Approvals, evt)

	if err != nil {
		rs.fail("task %s (%s): approval check failed: %v", task.ID, task.Type, err)
		rs.complete(task)
		rs.current = nil
		return stateRoute
	}
	if !evt.Approved {
		rs.fail("task %s (%s): approval denied", task.ID, task.Type)
		rs.complete(task)
		rs.current = nil
		return stateRoute
	}
	return stateRoute
}

// validate re-filters the whole accumulator. Already-kept records pass
// again via the memoized verdicts, so the pass is idempotent and drops are
// counted exactly once.
func (e *Engine) validate(rs *runState) state {
	before := len(rs.records)
	kept, problems := e.deps.Validator.Filter(rs.records)
	rs.records = kept
	rs.report.Errors = append(rs.report.Errors, problems...)
	if dropped := before - len(kept); dropped > 0 {
		rs.report.Metrics.ValidationDrops += dropped
		rs.log.Debug("engine: validation dropped records", zap.Int("dropped", dropped))
	}
	return stateRoute
}

// merge collapses duplicates and fixes the final confidence-descending
// order.
func (e *Engine) merge(rs *runState) state {
	before := len(rs.records)
	rs.records = dedupe.Merge(rs.records)
	rs.report.Metrics.DuplicatesCollapsed = before - len(rs.records)
	rs.report.Records = rs.records
	rs.log.Info("engine: records merged",
		zap.Int("collected", before),
		zap.Int("final", len(rs.records)),
	)
	return stateDone
}

func (e *Engine) setStatus(ctx context.Context, rs *runState, run *model.Run, status model.RunStatus) {
	run.Status = status
	run.UpdatedAt = time.Now().UTC()
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.UpdateRunStatus(ctx, run.ID, status); err != nil {
		rs.log.Warn("engine: failed to update run status",
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// finish settles the run's terminal status and persists the outcome. Store
// writes use a detached context so a cancelled run still lands on disk.
func (e *Engine) finish(ctx context.Context, rs *runState, run *model.Run) {
	status := model.RunStatusComplete
	switch {
	case ctx.Err() != nil:
		status = model.RunStatusCancelled
	case len(rs.report.Records) == 0 && len(rs.report.Errors) > 0:
		status = model.RunStatusFailed
	}
	run.Status = status
	run.Report = rs.report
	run.UpdatedAt = time.Now().UTC()
	if status == model.RunStatusFailed {
		run.Error = rs.report.Errors[0]
	}

	if e.deps.Store == nil {
		return
	}
	sctx := context.WithoutCancel(ctx)
	if len(rs.report.Records) > 0 {
		if err := e.deps.Store.InsertContacts(sctx, run.ID, rs.report.Records); err != nil {
			rs.log.Warn("engine: failed to persist records", zap.Error(err))
		}
	}
	if status == model.RunStatusFailed {
		if err := e.deps.Store.FailRun(sctx, run.ID, run.Error); err != nil {
			rs.log.Warn("engine: failed to record run failure", zap.Error(err))
		}
		return
	}
	if err := e.deps.Store.CompleteRun(sctx, run.ID, status, rs.report); err != nil {
		rs.log.Warn("engine: failed to record run completion", zap.Error(err))
	}
}
