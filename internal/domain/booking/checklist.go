package booking

import (
	"time"

	"github.com/google/uuid"
)

// Task is one item of the cleaning checklist.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"task_name"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskUpdate is a partial patch of one task, addressed by task id.
type TaskUpdate struct {
	TaskID      uuid.UUID `json:"task_id"`
	IsCompleted bool      `json:"is_completed"`
}

// Checklist is the ordered list of tasks for a job.
type Checklist []Task

// NewChecklist seeds one incomplete task per service name, preserving order.
func NewChecklist(services []string) Checklist {
	tasks := make(Checklist, 0, len(services))
	for _, name := range services {
		tasks = append(tasks, Task{ID: uuid.New(), Name: name})
	}
	return tasks
}

// Apply patches tasks in place. Unknown task ids are ignored.
// Re-completing a task keeps its original completion time.
func (c Checklist) Apply(updates []TaskUpdate, now time.Time) {
	index := make(map[uuid.UUID]int, len(c))
	for i, t := range c {
		index[t.ID] = i
	}
	for _, u := range updates {
		i, ok := index[u.TaskID]
		if !ok {
			continue
		}
		switch {
		case u.IsCompleted && !c[i].IsCompleted:
			at := now
			c[i].IsCompleted = true
			c[i].CompletedAt = &at
		case !u.IsCompleted:
			c[i].IsCompleted = false
			c[i].CompletedAt = nil
		}
	}
}

// AllCompleted reports whether every task is done. An empty checklist is complete.
func (c Checklist) AllCompleted() bool {
	for _, t := range c {
		if !t.IsCompleted {
			return false
		}
	}
	return true
}

// CompleteRemaining marks every open task done at now.
func (c Checklist) CompleteRemaining(now time.Time) {
	for i := range c {
		if !c[i].IsCompleted {
			at := now
			c[i].IsCompleted = true
			c[i].CompletedAt = &at
		}
	}
}

// CompletedCount returns the number of finished tasks.
func (c Checklist) CompletedCount() int {
	n := 0
	for _, t := range c {
		if t.IsCompleted {
			n++
		}
	}
	return n
}

func (c Checklist) clone() Checklist {
	out := make(Checklist, len(c))
	copy(out, c)
	return out
}
