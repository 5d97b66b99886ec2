package engine

import "github.com/sells-group/prospector-cli/internal/model"

// taskQueue is a FIFO of pending tasks. Retried tasks go to the tail, so a
// failing task never starves the rest of the batch.
type taskQueue struct {
	items []model.Task
}

func newTaskQueue(tasks []model.Task) *taskQueue {
	q := &taskQueue{items: make([]model.Task, len(tasks))}
	copy(q.items, tasks)
	return q
}

// Push appends a task to the tail.
func (q *taskQueue) Push(t model.Task) {
	q.items = append(q.items, t)
}

// Pop removes and returns the head task. ok is false on an empty queue.
func (q *taskQueue) Pop() (model.Task, bool) {
	if len(q.items) == 0 {
		return model.Task{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// Len reports how many tasks are pending.
func (q *taskQueue) Len() int {
	return len(q.items)
}
