// Package scheduler implements the M:N thread pool over a FIFO task queue
// of fibers and callables (spec.md C2).
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/loomrt/loom/fiber"
	"github.com/loomrt/loom/log"
)

// AnyThread is the affinity value meaning "any worker may run this task".
const AnyThread = -1

// Task is the tagged union spec.md section 3 describes: either a fiber
// handle or a plain callable, plus an optional thread-affinity hint.
type Task struct {
	Fiber *fiber.Fiber
	Fn    func()
	Hint  int
}

func fromFiber(f *fiber.Fiber, hint int) Task { return Task{Fiber: f, Hint: hint} }
func fromFunc(fn func(), hint int) Task       { return Task{Fn: fn, Hint: hint} }

// runningOn records which worker id currently has a fiber Exec, so the
// scan-for-runnable-task step can skip fibers Exec on another worker
// (spec.md 4.2 step 1).
type runningOn struct {
	mu sync.Mutex
	m  map[*fiber.Fiber]int
}

func (r *runningOn) set(f *fiber.Fiber, worker int) {
	r.mu.Lock()
	r.m[f] = worker
	r.mu.Unlock()
}

func (r *runningOn) clear(f *fiber.Fiber) {
	r.mu.Lock()
	delete(r.m, f)
	r.mu.Unlock()
}

func (r *runningOn) execElsewhere(f *fiber.Fiber, worker int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.m[f]
	return ok && owner != worker
}

// Scheduler is a thread pool multiplexing workerCount goroutines (the
// Go-idiomatic stand-in for spec.md's OS threads, see SPEC_FULL.md) over a
// shared FIFO task queue.
type Scheduler struct {
	name        string
	workerCount int
	useCaller   bool

	mu    sync.Mutex
	tasks []Task

	autoStop  int32 // atomic bool: Stop() was called
	active    int32 // atomic: workers currently not idle
	liveCount int32 // atomic: workers that have not yet exited

	tickleCh chan struct{}
	wg       sync.WaitGroup

	callbackFibers   []*fiber.Fiber // one reusable "callback coroutine" per worker
	schedulingFibers []*fiber.Fiber // per-worker scheduling fiber, indexed by workerID

	callerBootstrap *fiber.Fiber
	callerSched     *fiber.Fiber
	callerStarted   bool

	running *runningOn

	// idle is the worker's fallback action when the queue holds nothing
	// runnable for it. IoManager overrides this with its epoll_wait loop;
	// the default here just parks on tickleCh.
	idle func(workerID int)

	done chan struct{}
}

// New constructs a Scheduler. If useCaller is true the constructing
// goroutine is counted as one worker and a caller-mode scheduling fiber is
// prepared on it (spec.md 4.2's caller mode); workerCount must be >= 1.
func New(workerCount int, useCaller bool, name string) *Scheduler {
	if workerCount < 1 {
		panic("scheduler: thread_count must be >= 1")
	}
	s := &Scheduler{
		name:             name,
		workerCount:      workerCount,
		useCaller:        useCaller,
		tickleCh:         make(chan struct{}, 1),
		callbackFibers:   make([]*fiber.Fiber, workerCount),
		schedulingFibers: make([]*fiber.Fiber, workerCount),
		running:          &runningOn{m: make(map[*fiber.Fiber]int)},
		done:             make(chan struct{}),
	}
	s.idle = s.defaultIdle
	if useCaller {
		s.callerBootstrap = fiber.Current()
		s.callerSched = fiber.Spawn(func() { s.workerLoop(0) }, 0, true)
	}
	return s
}

// SetIdle overrides the per-worker idle action. Used by IoManager to splice
// in its epoll_wait loop; must be called before Start.
func (s *Scheduler) SetIdle(fn func(workerID int)) {
	s.idle = fn
}

// Name returns the scheduler's diagnostic name.
func (s *Scheduler) Name() string { return s.name }

// Start spawns workerCount-(useCaller?1:0) OS-scheduled goroutines, each
// entering the scheduling loop. If useCaller, the calling goroutine's
// bootstrap fiber is left ready to Call into the caller-mode scheduling
// fiber; that happens when Stop() runs it.
func (s *Scheduler) Start() {
	atomic.StoreInt32(&s.liveCount, int32(s.workerCount))
	first := 0
	if s.useCaller {
		first = 1
	}
	for id := first; id < s.workerCount; id++ {
		id := id
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.workerLoop(id)
		}()
	}
}

// workerMeta is stashed on every fiber the scheduler ever swaps in (task,
// callback, and the scheduling fiber itself), so that code running
// anywhere in that call tree can find its way back to "current scheduler"
// and "current worker" via nothing but fiber.Current() (spec.md 6's
// current()-is-ambient contract).
type workerMeta struct {
	s  *Scheduler
	id int
}

func (s *Scheduler) mark(f *fiber.Fiber, workerID int) {
	f.SetMeta(workerMeta{s: s, id: workerID})
}

// Current returns the scheduler that owns the calling goroutine's running
// fiber, as stashed when that fiber was last swapped in (spec.md 6's
// "current() (thread-local)").
func Current() *Scheduler {
	if m, ok := fiber.Current().Meta().(workerMeta); ok {
		return m.s
	}
	return nil
}

// MainFiber returns the scheduling fiber of the worker currently running
// the calling goroutine's fiber.
func (s *Scheduler) MainFiber() *fiber.Fiber {
	m, ok := fiber.Current().Meta().(workerMeta)
	if !ok || m.id < 0 || m.id >= len(s.schedulingFibers) {
		return nil
	}
	return s.schedulingFibers[m.id]
}

// Schedule enqueues a single fiber or callable, thread-safe, returning true
// if the queue transitioned empty->non-empty (in which case it already
// tickled a worker).
func (s *Scheduler) Schedule(t Task) bool {
	if t.Hint == 0 {
		t.Hint = AnyThread
	}
	s.mu.Lock()
	wasEmpty := len(s.tasks) == 0
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	if wasEmpty {
		s.tickle()
	}
	return wasEmpty
}

// ScheduleFiber is a convenience wrapper for Schedule with a fiber task.
func (s *Scheduler) ScheduleFiber(f *fiber.Fiber, hint int) bool {
	return s.Schedule(fromFiber(f, hint))
}

// ScheduleFunc is a convenience wrapper for Schedule with a callable task.
func (s *Scheduler) ScheduleFunc(fn func(), hint int) bool {
	return s.Schedule(fromFunc(fn, hint))
}

// ScheduleBatch enqueues a range of tasks with a single tickle if any
// enqueue transitioned the queue from empty to non-empty.
func (s *Scheduler) ScheduleBatch(ts []Task) bool {
	if len(ts) == 0 {
		return false
	}
	s.mu.Lock()
	wasEmpty := len(s.tasks) == 0
	s.tasks = append(s.tasks, ts...)
	s.mu.Unlock()
	if wasEmpty {
		s.tickle()
	}
	return wasEmpty
}

// tickle wakes a single worker parked in the idle action.
func (s *Scheduler) tickle() {
	select {
	case s.tickleCh <- struct{}{}:
	default:
	}
}

// Tickle is the exported form used by IoManager's self-pipe wake path and
// by tests.
func (s *Scheduler) Tickle() { s.tickle() }

// Stop requests an orderly shutdown: sets auto-stop, tickles every worker
// once (plus one extra in caller mode, to flush caller-mode work), then
// joins. In caller mode it first drives the caller's scheduling fiber to
// completion.
func (s *Scheduler) Stop() {
	if !atomic.CompareAndSwapInt32(&s.autoStop, 0, 1) {
		return
	}
	for i := 0; i < s.workerCount; i++ {
		s.tickle()
	}
	if s.useCaller {
		s.tickle()
		if fiber.Current() != s.callerBootstrap {
			log.L().Warn("scheduler: Stop called from a different goroutine than the caller-mode constructor; caller-mode work will not be driven")
		} else {
			s.driveCaller()
		}
	}
	s.wg.Wait()
	close(s.done)
}

// driveCaller swaps the constructing goroutine's bootstrap fiber into the
// caller-mode scheduling fiber until that scheduling fiber terminates
// (spec.md 4.1's "thread-main-coupled" call/back flavor).
func (s *Scheduler) driveCaller() {
	if s.callerStarted && s.callerSched.State() == fiber.StateTerm {
		return
	}
	s.callerStarted = true
	s.mark(s.callerSched, 0)
	for s.callerSched.State() != fiber.StateTerm && s.callerSched.State() != fiber.StateExcept {
		fiber.Call(s.callerBootstrap, s.callerSched)
	}
}

// stopping implements spec.md 4.2's termination predicate: auto-stop
// requested AND stop requested (synonymous here) AND queue empty AND no
// active worker.
func (s *Scheduler) stopping() bool {
	if atomic.LoadInt32(&s.autoStop) == 0 {
		return false
	}
	s.mu.Lock()
	empty := len(s.tasks) == 0
	s.mu.Unlock()
	return empty && atomic.LoadInt32(&s.active) == 0
}

// Stopping exposes stopping() to embedders (IoManager's idle loop needs it
// combined with its own pending-event/timer checks).
func (s *Scheduler) Stopping() bool { return s.stopping() }

// QueueLen reports the current task queue depth (used by metrics).
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// pop implements spec.md 4.2 step 1-3: scan from head for the first task
// runnable on this worker, removing it; report whether another runnable
// task remains so the caller knows to tickle a sibling.
func (s *Scheduler) pop(workerID int) (Task, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.tasks {
		if !s.runnableHere(t, workerID) {
			continue
		}
		idx = i
		break
	}
	if idx == -1 {
		return Task{}, false, false
	}
	t := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)

	tickleOthers := false
	for _, other := range s.tasks {
		if s.runnableHere(other, workerID) {
			tickleOthers = true
			break
		}
	}
	return t, true, tickleOthers
}

func (s *Scheduler) runnableHere(t Task, workerID int) bool {
	if t.Hint != AnyThread && t.Hint != workerID {
		return false
	}
	if t.Fiber != nil && s.running.execElsewhere(t.Fiber, workerID) {
		return false
	}
	return true
}

// nonEmptyUnrunnable reports whether the queue is non-empty but nothing in
// it is currently runnable on this worker (spec.md 4.2 step 5).
func (s *Scheduler) nonEmptyUnrunnable(workerID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return false
	}
	for _, t := range s.tasks {
		if s.runnableHere(t, workerID) {
			return false
		}
	}
	return true
}

// workerLoop is the per-worker scheduling loop, spec.md 4.2.
func (s *Scheduler) workerLoop(workerID int) {
	me := fiber.Current() // this goroutine's own bootstrap-equivalent fiber
	s.mark(me, workerID)
	s.schedulingFibers[workerID] = me
	s.callbackFibers[workerID] = fiber.Spawn(func() {}, 0, false)
	s.mark(s.callbackFibers[workerID], workerID)

	atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, ^int32(0))

	for {
		if s.stopping() {
			return
		}

		t, found, tickleOthers := s.pop(workerID)
		if tickleOthers {
			s.tickle()
		}

		if !found {
			if s.nonEmptyUnrunnable(workerID) {
				// Nothing runnable right now even though the queue isn't
				// empty; don't spin, fall through to idle like an empty
				// queue would.
			}
			s.idle(workerID)
			continue
		}

		s.runTask(t, workerID)
	}
}

func (s *Scheduler) runTask(t Task, workerID int) {
	switch {
	case t.Fiber != nil:
		s.running.set(t.Fiber, workerID)
		s.mark(t.Fiber, workerID)
		switch t.Fiber.State() {
		case fiber.StateInit, fiber.StateHold, fiber.StateReady:
			if t.Fiber.State() == fiber.StateInit {
				t.Fiber.SetHookEnabled(true)
			}
			fiber.SwapIn(s.schedulingFibers[workerID], t.Fiber)
		default:
			log.L().Warn("scheduler: skipping fiber in unexpected state", log.Uint64("fiber", t.Fiber.ID()))
			s.running.clear(t.Fiber)
			return
		}
		s.running.clear(t.Fiber)
		switch t.Fiber.State() {
		case fiber.StateReady:
			s.Schedule(fromFiber(t.Fiber, t.Hint))
		case fiber.StateTerm, fiber.StateExcept:
			// done
		default:
			// Voluntarily suspended (Hold): stays off the queue until
			// something explicitly resumes it (e.g. an I/O event fires).
		}
	case t.Fn != nil:
		cb := s.callbackFibers[workerID]
		cb.Reset(t.Fn)
		cb.SetHookEnabled(true)
		s.mark(cb, workerID)
		fiber.SwapIn(s.schedulingFibers[workerID], cb)
	}
}

func (s *Scheduler) defaultIdle(workerID int) {
	<-s.tickleCh
}
