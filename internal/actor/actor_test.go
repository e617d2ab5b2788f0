package actor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"server/internal/proccontrol"
)

func drainEvents[Result any](t *testing.T, a *Actor[int, Result], want int, timeout time.Duration) []Event[Result] {
	t.Helper()
	var got []Event[Result]
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case ev := <-a.Events():
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", want, len(got))
		}
	}
	return got
}

func TestActorRunsUpToMaxActiveConcurrently(t *testing.T) {
	log := zap.NewNop()
	var inFlight int32
	var maxSeen int32

	handler := func(ctx context.Context, task int, ctl *proccontrol.Handle) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return task * 2, nil
	}

	a := New[int, int](log, 2, 10, handler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	for i := 1; i <= 4; i++ {
		a.Submit(fmt.Sprintf("t%d", i), i)
	}

	results := map[int]bool{}
	deadline := time.After(2 * time.Second)
	for len(results) < 4 {
		select {
		case ev := <-a.Events():
			if ev.Kind == EventTaskResult {
				results[ev.Result] = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for results")
		}
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestActorDropsBeyondQueueCapacity(t *testing.T) {
	log := zap.NewNop()
	block := make(chan struct{})
	handler := func(ctx context.Context, task int, ctl *proccontrol.Handle) (int, error) {
		<-block
		return task, nil
	}

	a := New[int, int](log, 1, 1, handler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	// One runs, one queues, one is dropped.
	a.Submit("a", 1)
	a.Submit("b", 2)
	a.Submit("c", 3)

	var dropped []string
	deadline := time.After(2 * time.Second)
	for len(dropped) < 1 {
		select {
		case ev := <-a.Events():
			if ev.Kind == EventDroppedMessage {
				dropped = append(dropped, ev.DroppedID)
			}
		case <-deadline:
			t.Fatal("timed out waiting for drop event")
		}
	}
	assert.Equal(t, "c", dropped[0])
	close(block)
}

func TestActorCancelStopsContextForTask(t *testing.T) {
	log := zap.NewNop()
	cancelled := make(chan struct{}, 1)
	handler := func(ctx context.Context, task int, ctl *proccontrol.Handle) (int, error) {
		<-ctx.Done()
		cancelled <- struct{}{}
		return 0, ctx.Err()
	}

	a := New[int, int](log, 1, 1, handler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	a.Submit("x", 1)
	time.Sleep(20 * time.Millisecond)
	a.Cancel("x")

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not cancelled")
	}

	// The task's start emitted an ActivityChange before its TaskResult.
	ev := drainEvents[int](t, a, 2, 2*time.Second)
	require.Len(t, ev, 2)
	assert.Equal(t, EventTaskResult, ev[1].Kind)
	assert.Equal(t, "x", ev[1].ResultID)
}

func TestActorPauseAllStopsNewStartsButNotInFlight(t *testing.T) {
	log := zap.NewNop()
	running := make(chan string, 4)
	release := make(chan struct{})
	handler := func(ctx context.Context, task int, ctl *proccontrol.Handle) (int, error) {
		running <- "started"
		<-release
		return task, nil
	}

	a := New[int, int](log, 1, 10, handler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	// Fills the one active slot; this task must keep running across the pause.
	a.Submit("a", 1)
	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatal("first task never started")
	}

	a.PauseAll()
	time.Sleep(20 * time.Millisecond) // let PauseAll land before queuing more

	// Queued while paused; must not start until ResumeAll.
	a.Submit("b", 2)

	select {
	case <-running:
		t.Fatal("queued task started while actor was paused")
	case <-time.After(100 * time.Millisecond):
	}

	// The in-flight task is unaffected by PauseAll — let it finish.
	// Starting "a" and queuing "b" each emitted an ActivityChange first.
	close(release)
	ev := drainEvents[int](t, a, 3, 2*time.Second)
	require.Len(t, ev, 3)
	assert.Equal(t, "a", ev[2].ResultID)

	a.ResumeAll()
	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task never started after ResumeAll")
	}
}
