package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomrt/loom/fiber"
)

func TestScheduleFuncRunsOnSomeWorker(t *testing.T) {
	s := New(2, false, "t1")
	s.Start()

	done := make(chan struct{})
	s.ScheduleFunc(func() { close(done) }, AnyThread)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled func never ran")
	}
	s.Stop()
}

func TestScheduleFiberRunsToTermination(t *testing.T) {
	s := New(1, false, "t2")
	s.Start()

	ran := make(chan struct{})
	f := fiber.Spawn(func() { close(ran) }, 0, false)
	s.ScheduleFiber(f, AnyThread)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("fiber never ran")
	}
	s.Stop()
}

func TestYieldToReadyReschedulesFiber(t *testing.T) {
	s := New(1, false, "t3")
	s.Start()

	var runs int32
	done := make(chan struct{})
	var f *fiber.Fiber
	f = fiber.Spawn(func() {
		n := atomic.AddInt32(&runs, 1)
		if n < 3 {
			fiber.YieldToReady()
			return
		}
		close(done)
	}, 0, false)
	s.ScheduleFiber(f, AnyThread)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fiber was not rescheduled enough times")
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&runs))
	s.Stop()
}

func TestCurrentResolvesFromInsideATask(t *testing.T) {
	s := New(1, false, "t4")
	s.Start()

	result := make(chan *Scheduler, 1)
	s.ScheduleFunc(func() { result <- Current() }, AnyThread)

	select {
	case got := <-result:
		require.Same(t, s, got)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	s.Stop()
}

func TestManyConcurrentTasksAllRun(t *testing.T) {
	s := New(4, false, "t5")
	s.Start()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		s.ScheduleFunc(func() { wg.Done() }, AnyThread)
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("not all tasks completed")
	}
	s.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(1, false, "t6")
	s.Start()
	s.Stop()
	require.NotPanics(t, func() { s.Stop() })
}
