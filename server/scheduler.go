package server

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"athena/task"
	"athena/types"
	"athena/vm"

	"go.uber.org/zap"
)

var (
	ErrSchedulerStopped = errors.New("scheduler stopped")
	ErrNoDialogue       = errors.New("actor is not in a dialogue")
	ErrBusy             = errors.New("actor is already in a dialogue")
	ErrSleeping         = errors.New("script is waiting on a timer")
)

// Scheduler owns every Engine call. Jobs run one at a time on a single
// goroutine, so scripts never observe each other mid-instruction.
type Scheduler struct {
	eng     *vm.Engine
	tasks   *task.Manager
	log     *zap.Logger
	waiting *TaskQueue
	jobs    chan func()

	// OnEnd is called on the scheduler goroutine when a task ends; it
	// must not call back into the scheduler
	OnEnd func(t *task.Task)

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler over eng
func NewScheduler(eng *vm.Engine, tasks *task.Manager, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if tasks == nil {
		tasks = task.NewManager()
	}
	return &Scheduler{
		eng:     eng,
		tasks:   tasks,
		log:     log,
		waiting: NewTaskQueue(),
		jobs:    make(chan func()),
	}
}

// Tasks returns the task registry
func (s *Scheduler) Tasks() *task.Manager { return s.tasks }

// Start begins the scheduler loop
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the scheduler and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.nextWake())

		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			job()
		case <-timer.C:
			s.wakeReady(time.Now())
		}
	}
}

// nextWake returns how long until the earliest timed wake-up
func (s *Scheduler) nextWake() time.Duration {
	if s.waiting.Len() == 0 {
		return time.Hour
	}
	d := time.Until(s.waiting.Peek().WakeTime())
	if d < 0 {
		return 0
	}
	return d
}

// wakeReady resumes every task whose wake time has passed
func (s *Scheduler) wakeReady(now time.Time) {
	for s.waiting.Len() > 0 {
		t := s.waiting.Peek()
		if t.WakeTime().After(now) {
			return
		}
		heap.Pop(s.waiting)
		t.SetWake(time.Time{})
		if t.Done() {
			continue
		}
		if err := s.eng.Resume(t.State, nil); err != nil {
			s.log.Warn("timed resume failed", zap.Stringer("task", t.ID), zap.Error(err))
		}
		s.settle(t)
	}
}

// Do runs fn on the scheduler goroutine and waits for it
func (s *Scheduler) Do(fn func()) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return ErrSchedulerStopped
	}

	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return ErrSchedulerStopped
	}
	<-done
	return nil
}

// StartScript starts prog for actor on behalf of owner
func (s *Scheduler) StartScript(kind task.TaskKind, name string, prog *vm.Program, actor, owner int) (*task.Task, error) {
	var (
		t   *task.Task
		err error
	)
	if derr := s.Do(func() {
		if actor != 0 && s.tasks.ForActor(actor) != nil {
			err = ErrBusy
			return
		}
		var st *vm.State
		st, err = s.eng.Start(prog, actor, owner)
		if err != nil {
			return
		}
		t = task.NewTask(kind, name, st)
		s.tasks.Add(t)
		s.settle(t)
	}); derr != nil {
		return nil, derr
	}
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	return t, nil
}

// Deliver answers the dialogue actor is in. The value is ignored when
// the script only waits for a "next" click.
func (s *Scheduler) Deliver(actor int, value types.Value) error {
	var err error
	if derr := s.Do(func() {
		t := s.tasks.ForActor(actor)
		if t == nil {
			err = ErrNoDialogue
			return
		}
		if !t.WakeTime().IsZero() {
			err = ErrSleeping
			return
		}
		if err = s.eng.Resume(t.State, value); err != nil {
			return
		}
		s.settle(t)
	}); derr != nil {
		return derr
	}
	return err
}

// KillOwner ends every task owned by owner
func (s *Scheduler) KillOwner(owner int) (n int, err error) {
	err = s.Do(func() {
		n = s.tasks.KillOwner(s.eng, owner)
	})
	return n, err
}

// KillActor ends the dialogue actor is in
func (s *Scheduler) KillActor(actor int) (killed bool, err error) {
	err = s.Do(func() {
		killed = s.tasks.KillActor(s.eng, actor)
	})
	return killed, err
}

// settle files a task after a run: ended tasks are dropped, timed
// yields go on the wake heap, everything else waits for Deliver
func (s *Scheduler) settle(t *task.Task) {
	st := t.State
	switch st.Status {
	case vm.StatusEnded:
		s.tasks.Remove(t.ID)
		if st.Err != nil {
			s.log.Info("task failed",
				zap.Stringer("task", t.ID),
				zap.String("script", t.Script),
				zap.Int("actor", t.Actor()),
				zap.Error(st.Err))
		}
		if s.OnEnd != nil {
			s.OnEnd(t)
		}
	case vm.StatusYielded:
		if st.WakeAfter > 0 {
			t.SetWake(time.Now().Add(st.WakeAfter))
			heap.Push(s.waiting, t)
		}
	}
}

// TaskQueue is a priority queue of sleeping tasks ordered by wake time
type TaskQueue []*task.Task

func NewTaskQueue() *TaskQueue {
	tq := make(TaskQueue, 0)
	heap.Init(&tq)
	return &tq
}

func (tq TaskQueue) Len() int { return len(tq) }

func (tq TaskQueue) Less(i, j int) bool {
	return tq[i].WakeTime().Before(tq[j].WakeTime())
}

func (tq TaskQueue) Swap(i, j int) {
	tq[i], tq[j] = tq[j], tq[i]
}

func (tq *TaskQueue) Push(x interface{}) {
	*tq = append(*tq, x.(*task.Task))
}

func (tq *TaskQueue) Pop() interface{} {
	old := *tq
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*tq = old[:n-1]
	return t
}

// Peek returns the earliest task without removing it
func (tq TaskQueue) Peek() *task.Task {
	if len(tq) == 0 {
		return nil
	}
	return tq[0]
}
