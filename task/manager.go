package task

import (
	"sort"
	"sync"

	"athena/vm"

	"github.com/google/uuid"
)

// Killer forces an instance to end; vm.Engine satisfies it
type Killer interface {
	Kill(st *vm.State)
}

// Manager indexes live tasks by ID, actor and owner
type Manager struct {
	mu      sync.RWMutex
	tasks   map[uuid.UUID]*Task
	byActor map[int]*Task // an actor holds at most one dialogue
	byOwner map[int]map[uuid.UUID]*Task
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{
		tasks:   make(map[uuid.UUID]*Task),
		byActor: make(map[int]*Task),
		byOwner: make(map[int]map[uuid.UUID]*Task),
	}
}

// Add registers a task. Tasks that already ended are not kept.
func (m *Manager) Add(t *Task) {
	if t.Done() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	if a := t.Actor(); a != 0 {
		m.byActor[a] = t
	}
	if m.byOwner[t.Owner()] == nil {
		m.byOwner[t.Owner()] = make(map[uuid.UUID]*Task)
	}
	m.byOwner[t.Owner()][t.ID] = t
}

// Get retrieves a task by ID
func (m *Manager) Get(id uuid.UUID) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[id]
}

// ForActor returns the task an actor is talking to, nil if none
func (m *Manager) ForActor(actor int) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byActor[actor]
}

// ForOwner returns the tasks owned by owner
func (m *Manager) ForOwner(owner int) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0, len(m.byOwner[owner]))
	for _, t := range m.byOwner[owner] {
		out = append(out, t)
	}
	sortByStart(out)
	return out
}

// All returns every live task, oldest first
func (m *Manager) All() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sortByStart(out)
	return out
}

// Remove forgets a task
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(id)
}

func (m *Manager) remove(id uuid.UUID) {
	t, ok := m.tasks[id]
	if !ok {
		return
	}
	delete(m.tasks, id)
	if m.byActor[t.Actor()] == t {
		delete(m.byActor, t.Actor())
	}
	if owned := m.byOwner[t.Owner()]; owned != nil {
		delete(owned, id)
		if len(owned) == 0 {
			delete(m.byOwner, t.Owner())
		}
	}
}

// Len returns the number of live tasks
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// CleanupCompleted removes tasks whose instance has ended
func (m *Manager) CleanupCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.tasks {
		if t.Done() {
			m.remove(id)
			n++
		}
	}
	return n
}

// KillOwner ends and removes every task owned by owner, returning how
// many were killed. Used when the owning entity goes away.
func (m *Manager) KillOwner(k Killer, owner int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.byOwner[owner] {
		k.Kill(t.State)
		m.remove(id)
		n++
	}
	return n
}

// KillActor ends the dialogue an actor is in, if any
func (m *Manager) KillActor(k Killer, actor int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byActor[actor]
	if !ok {
		return false
	}
	k.Kill(t.State)
	m.remove(t.ID)
	return true
}

func sortByStart(ts []*Task) {
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].StartTime.Before(ts[j].StartTime)
	})
}
