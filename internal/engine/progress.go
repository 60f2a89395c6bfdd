package engine

import "sync"

// TaskProgress exposes monotonically increasing (task_count, tasks_done,
// sub-task ratio, message), sampled by the GUI thread without
// synchronization barriers — occasional stale reads are acceptable per
// spec §5. There is no async runtime backing this: a single worker thread
// advances the struct under a mutex; readers take a quick copy.
type TaskProgress struct {
	mu        sync.Mutex
	TaskCount int
	TasksDone int
	SubRatio  float64
	Message   string
}

// Snapshot copies the current state; the mutex is held only long enough
// to copy, never blocking the writer for long.
func (p *TaskProgress) Snapshot() TaskProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return TaskProgress{
		TaskCount: p.TaskCount,
		TasksDone: p.TasksDone,
		SubRatio:  p.SubRatio,
		Message:   p.Message,
	}
}

// SetTotal declares the total number of tasks in the current job.
func (p *TaskProgress) SetTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TaskCount = n
	p.TasksDone = 0
	p.SubRatio = 0
}

// Advance marks one task complete and updates the status message.
func (p *TaskProgress) Advance(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TasksDone++
	p.SubRatio = 0
	p.Message = message
}

// SetSub records progress within the current task (e.g. bytes copied).
func (p *TaskProgress) SetSub(ratio float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SubRatio = ratio
}
