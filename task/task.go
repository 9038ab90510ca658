package task

import (
	"sync"
	"time"

	"athena/vm"

	"github.com/google/uuid"
)

// TaskKind represents the origin of a task
type TaskKind int

const (
	TaskDialogue TaskKind = iota // started by an actor talking to an NPC
	TaskEvent                    // started by the server with no actor
	TaskCommand                  // started from the command line
)

func (k TaskKind) String() string {
	switch k {
	case TaskDialogue:
		return "dialogue"
	case TaskEvent:
		return "event"
	case TaskCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Task is one script instance tracked by the host
type Task struct {
	ID        uuid.UUID
	Kind      TaskKind
	Script    string
	StartTime time.Time
	State     *vm.State

	mu       sync.Mutex
	wakeTime time.Time // zero unless waiting on a timed yield
}

// NewTask wraps a started instance
func NewTask(kind TaskKind, script string, st *vm.State) *Task {
	return &Task{
		ID:        st.ID,
		Kind:      kind,
		Script:    script,
		StartTime: time.Now(),
		State:     st,
	}
}

// Actor returns the actor the instance talks to
func (t *Task) Actor() int { return t.State.Actor() }

// Owner returns the entity that owns the instance
func (t *Task) Owner() int { return t.State.Owner() }

// Status returns the instance's execution status
func (t *Task) Status() vm.Status { return t.State.Status }

// Done reports whether the instance has ended
func (t *Task) Done() bool { return t.State.Status == vm.StatusEnded }

// SetWake records when a yielded instance should continue
func (t *Task) SetWake(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wakeTime = at
}

// WakeTime returns the pending wake-up, zero if none
func (t *Task) WakeTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wakeTime
}
