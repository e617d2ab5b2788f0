// Package actor implements the bounded-concurrency worker actor used for
// every derivation kind (spec §7). Generalizes the teacher's generic
// Queue[T]/PayloadArgs[T] pattern (internal/queue/types.go,
// internal/queue/river_queue.go) from a Postgres-backed job queue to an
// in-process actor with per-task pause/resume/cancel, which river's
// job-to-completion model has no primitive for.
package actor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"server/internal/proccontrol"
)

// DefaultMaxActive and DefaultMaxQueue are the bounds spec §7 names: at most
// four tasks run concurrently per actor, and at most ten more wait.
const (
	DefaultMaxActive = 4
	DefaultMaxQueue  = 10
)

// Submission is one unit of work offered to an Actor.
type Submission[Task any] struct {
	ID   string
	Task Task
}

// EventKind discriminates the Event union emitted on an Actor's Events
// channel (spec §7: ActivityChange, DroppedMessage, TaskResult).
type EventKind int

const (
	EventActivityChange EventKind = iota
	EventDroppedMessage
	EventTaskResult
)

// Event is a tagged union; exactly the field matching Kind is meaningful.
type Event[Result any] struct {
	Kind EventKind

	// EventActivityChange
	ActiveCount int
	QueuedCount int

	// EventDroppedMessage
	DroppedID string

	// EventTaskResult
	ResultID     string
	Result       Result
	ResultErr    error
}

// Handler performs one task. It receives a per-task proccontrol.Handle so
// the actor can forward Pause/Resume/Cancel into whatever subprocess the
// handler's operation shells out to (spec §4.4's closing paragraph).
type Handler[Task, Result any] func(ctx context.Context, task Task, ctl *proccontrol.Handle) (Result, error)

type controlMsg struct {
	pauseAll  bool
	resumeAll bool
	pauseID   string
	resumeID  string
	cancelID  string
	killID    string
}

type runningTask struct {
	cancel context.CancelFunc
	handle *proccontrol.Handle
	paused bool
}

// Actor runs at most maxActive tasks concurrently, queueing up to maxQueue
// more, and dropping (with a DroppedMessage event) anything beyond that
// (spec §7, task arrival policy).
type Actor[Task, Result any] struct {
	log       *zap.Logger
	maxActive int
	maxQueue  int
	handler   Handler[Task, Result]

	submissions chan Submission[Task]
	control     chan controlMsg
	events      chan Event[Result]
	done        chan struct{}
}

// New constructs an Actor. Call Run in its own goroutine to start it.
func New[Task, Result any](log *zap.Logger, maxActive, maxQueue int, handler Handler[Task, Result]) *Actor[Task, Result] {
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	return &Actor[Task, Result]{
		log:         log,
		maxActive:   maxActive,
		maxQueue:    maxQueue,
		handler:     handler,
		submissions: make(chan Submission[Task], maxQueue*2),
		control:     make(chan controlMsg, 16),
		events:      make(chan Event[Result], maxActive+maxQueue),
		done:        make(chan struct{}),
	}
}

// Events exposes the actor's event stream. Must be drained or Run will
// eventually block once the buffer fills.
func (a *Actor[Task, Result]) Events() <-chan Event[Result] { return a.events }

// Submit offers a task. It blocks while the internal submissions buffer
// (2x maxQueue) is full; admission/drop decisions happen inside Run. Once
// Run has returned, Submit returns without effect.
func (a *Actor[Task, Result]) Submit(id string, task Task) {
	select {
	case a.submissions <- Submission[Task]{ID: id, Task: task}:
	case <-a.done:
	}
}

func (a *Actor[Task, Result]) PauseAll()  { a.sendControl(controlMsg{pauseAll: true}) }
func (a *Actor[Task, Result]) ResumeAll() { a.sendControl(controlMsg{resumeAll: true}) }
func (a *Actor[Task, Result]) Pause(id string)  { a.sendControl(controlMsg{pauseID: id}) }
func (a *Actor[Task, Result]) Resume(id string) { a.sendControl(controlMsg{resumeID: id}) }
func (a *Actor[Task, Result]) Cancel(id string) { a.sendControl(controlMsg{cancelID: id}) }
func (a *Actor[Task, Result]) Kill(id string)   { a.sendControl(controlMsg{killID: id}) }

func (a *Actor[Task, Result]) sendControl(m controlMsg) {
	select {
	case a.control <- m:
	case <-a.done:
	}
}

// Run is the actor's main loop. It returns when ctx is cancelled, after
// every in-flight task has been cancelled and its goroutine has exited.
func (a *Actor[Task, Result]) Run(ctx context.Context) {
	defer close(a.done)

	var queue []Submission[Task]
	active := make(map[string]*runningTask)
	// Buffered to a.maxActive so a task finishing after Run has already
	// returned (ctx cancelled) can still deliver its result without
	// blocking forever on a main loop that stopped reading.
	results := make(chan taskDone[Result], a.maxActive)

	var wg sync.WaitGroup
	defer wg.Wait()

	// pausedAll is PauseAll/ResumeAll's actor-wide gate on starting new work.
	// Spec §4.7: while paused, the queue is not drained and in-flight tasks
	// keep running — pausing the actor is not the same as pausing every
	// running task's subprocess, which is what per-task Pause does.
	pausedAll := false

	emitActivity := func() {
		a.events <- Event[Result]{Kind: EventActivityChange, ActiveCount: len(active), QueuedCount: len(queue)}
	}

	startNext := func() {
		if pausedAll {
			return
		}
		for len(active) < a.maxActive && len(queue) > 0 {
			sub := queue[0]
			queue = queue[1:]
			taskCtx, cancel := context.WithCancel(ctx)
			handle := proccontrol.NewHandle()
			active[sub.ID] = &runningTask{cancel: cancel, handle: handle}
			wg.Add(1)
			go func(sub Submission[Task]) {
				defer wg.Done()
				var res Result
				var err error
				func() {
					defer func() {
						if p := recover(); p != nil {
							err = fmt.Errorf("actor: task %s panicked: %v", sub.ID, p)
						}
					}()
					res, err = a.handler(taskCtx, sub.Task, handle)
				}()
				select {
				case results <- taskDone[Result]{id: sub.ID, result: res, err: err}:
				case <-a.done:
				}
			}(sub)
			emitActivity()
		}
	}

	for {
		select {
		case <-ctx.Done():
			for _, rt := range active {
				rt.cancel()
				rt.handle.Close()
			}
			return

		case sub := <-a.submissions:
			if !pausedAll && len(active) < a.maxActive {
				queue = append(queue, sub)
				startNext()
				continue
			}
			if len(queue) < a.maxQueue {
				queue = append(queue, sub)
				emitActivity()
				continue
			}
			a.events <- Event[Result]{Kind: EventDroppedMessage, DroppedID: sub.ID}

		case m := <-a.control:
			switch {
			case m.pauseAll:
				// Gate future starts only; in-flight tasks and their
				// subprocesses keep running (spec §4.7).
				pausedAll = true
			case m.resumeAll:
				pausedAll = false
				startNext()
			case m.pauseID != "":
				if rt, ok := active[m.pauseID]; ok && !rt.paused {
					rt.handle.Pause()
					rt.paused = true
				}
			case m.resumeID != "":
				if rt, ok := active[m.resumeID]; ok && rt.paused {
					rt.handle.Resume()
					rt.paused = false
				}
			case m.cancelID != "":
				if rt, ok := active[m.cancelID]; ok {
					rt.handle.Cancel()
					rt.cancel()
				}
			case m.killID != "":
				if rt, ok := active[m.killID]; ok {
					rt.handle.Kill()
				}
			}

		case done := <-results:
			if rt, ok := active[done.id]; ok {
				rt.handle.Close()
				delete(active, done.id)
			}
			a.events <- Event[Result]{Kind: EventTaskResult, ResultID: done.id, Result: done.result, ResultErr: done.err}
			startNext()
			emitActivity()
		}
	}
}

type taskDone[Result any] struct {
	id     string
	result Result
	err    error
}
