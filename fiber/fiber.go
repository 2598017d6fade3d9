// Package fiber implements the stackful coroutine primitive (spec C1).
//
// Go has no portable ucontext-style stack switch, so a Fiber is backed by
// a dedicated goroutine and a pair of unbuffered rendezvous channels:
// switching is a blocking send paired with a blocking receive, which keeps
// the "exactly one runnable side at a time" and "suspended stack untouched
// until resumed" contracts spec.md's Design Notes ask for, the same
// wakeCh/yieldCh hand-off shape as coopsched.task.waitAndBlock.
package fiber

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/loomrt/loom/glocal"
)

// State is a Coroutine's lifecycle state (spec.md section 3).
type State int32

const (
	StateInit State = iota
	StateHold
	StateExec
	StateReady
	StateTerm
	StateExcept
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHold:
		return "hold"
	case StateExec:
		return "exec"
	case StateReady:
		return "ready"
	case StateTerm:
		return "term"
	case StateExcept:
		return "except"
	default:
		return "unknown"
	}
}

// DefaultStackSize mirrors spec.md's coroutine.stack_size default.
const DefaultStackSize = 128 * 1024

var nextID uint64

// A Fiber is a single stackful (goroutine-backed) execution unit.
type Fiber struct {
	id          uint64
	state       int32 // atomic State
	stackSize   int
	fn          func()
	runInCaller bool
	bootstrap   bool

	hookEnabled int32 // atomic bool, see hook.IsEnabled/SetEnabled

	started  int32 // atomic bool: goroutine launched
	resumeCh chan struct{}
	yieldCh  chan struct{}

	panicVal interface{}

	// meta is an opaque back-reference the owning scheduler may stash here
	// (spec.md 3's "owning scheduler (optional)"); it travels with the
	// Fiber across goroutine switches, which makes it the right vessel for
	// "current scheduler"/"current worker" lookups from code that only has
	// fiber.Current() to go on. Non-owning: the scheduler package is the
	// only reader/writer, fiber never interprets it.
	meta interface{}

	mu sync.Mutex
}

// SetMeta stashes an opaque back-reference on the Fiber.
func (f *Fiber) SetMeta(v interface{}) { f.meta = v }

// Meta returns the opaque back-reference previously set with SetMeta.
func (f *Fiber) Meta() interface{} { return f.meta }

// current binds the Go-runtime goroutine id to the Fiber executing on it;
// see package glocal for why goroutine identity stands in for spec.md's
// per-OS-thread "current coroutine" slot.
var current glocal.Slot[*Fiber]

func setCurrent(f *Fiber) {
	current.Set(f)
}

func clearCurrent() {
	current.Clear()
}

// Current returns the calling goroutine's running Fiber, creating the
// bootstrap Fiber on first call (spec.md 4.1's current()).
func Current() *Fiber {
	if f, ok := current.Get(); ok {
		return f
	}
	f := &Fiber{
		id:        atomic.AddUint64(&nextID, 1),
		state:     int32(StateExec),
		bootstrap: true,
	}
	setCurrent(f)
	return f
}

// CurrentID returns the id of the calling goroutine's running Fiber.
func CurrentID() uint64 {
	return Current().id
}

// Spawn allocates a new Init-state Fiber. stackSize is advisory (it sizes
// the goroutine's initial stack hint only insofar as Go stacks grow on
// demand regardless); zero selects DefaultStackSize.
func Spawn(fn func(), stackSize int, runInCaller bool) *Fiber {
	if fn == nil {
		panic("fiber: spawn requires a non-nil callable")
	}
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	f := &Fiber{
		id:          atomic.AddUint64(&nextID, 1),
		state:       int32(StateInit),
		stackSize:   stackSize,
		fn:          fn,
		runInCaller: runInCaller,
		resumeCh:    make(chan struct{}),
		yieldCh:     make(chan struct{}),
	}
	return f
}

// ID returns the Fiber's identity.
func (f *Fiber) ID() uint64 { return f.id }

// State returns the Fiber's current lifecycle state.
func (f *Fiber) State() State { return State(atomic.LoadInt32(&f.state)) }

func (f *Fiber) setState(s State) { atomic.StoreInt32(&f.state, int32(s)) }

// SetHookEnabled toggles this Fiber's async-I/O hook switch (spec.md
// 4.5's per-thread enable, substituting "current fiber" per SPEC_FULL.md).
func (f *Fiber) SetHookEnabled(v bool) {
	var n int32
	if v {
		n = 1
	}
	atomic.StoreInt32(&f.hookEnabled, n)
}

// HookEnabled reports this Fiber's async-I/O hook switch.
func (f *Fiber) HookEnabled() bool {
	return atomic.LoadInt32(&f.hookEnabled) != 0
}

// RunInCaller reports whether this Fiber is pinned to run only via
// call/back against the bootstrap Fiber of whatever goroutine created it
// (spec.md's "caller mode" asymmetry).
func (f *Fiber) RunInCaller() bool { return f.runInCaller }

// Err returns the recovered panic value if the Fiber ended in StateExcept.
func (f *Fiber) Err() interface{} { return f.panicVal }

// Reset reuses a Term/Except/Init Fiber with a new callable (spec.md 4.1).
// It is a programming error to reset a Fiber that is Hold, Exec, or Ready.
func (f *Fiber) Reset(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.State() {
	case StateTerm, StateExcept, StateInit:
	default:
		panic(fmt.Sprintf("fiber: reset of fiber %d in state %s is a programming error", f.id, f.State()))
	}
	f.fn = fn
	f.panicVal = nil
	f.setState(StateInit)
	atomic.StoreInt32(&f.started, 0)
	f.resumeCh = make(chan struct{})
	f.yieldCh = make(chan struct{})
}

// swap performs one synchronous handoff: the calling goroutine (acting as
// "from") hands control to "to" and blocks until "to" yields or terminates.
func swap(from, to *Fiber) {
	if to == from {
		panic("fiber: cannot switch a fiber into itself")
	}
	switch to.State() {
	case StateExec:
		panic(fmt.Sprintf("fiber: fiber %d is already Exec on another goroutine", to.id))
	case StateTerm, StateExcept:
		panic(fmt.Sprintf("fiber: fiber %d has already terminated", to.id))
	}

	if atomic.CompareAndSwapInt32(&to.started, 0, 1) {
		go to.trampoline(from)
	} else {
		to.setState(StateExec)
		to.resumeCh <- struct{}{}
	}
	<-to.yieldCh
}

// trampoline is the body every spawned Fiber's dedicated goroutine runs.
// It invokes the callable, converts a panic into the Except state instead
// of letting it unwind past this boundary (spec.md section 7's "Exceptions
// inside a coroutine callable" rule), and hands control back to whichever
// Fiber most recently swapped it in.
func (f *Fiber) trampoline(parent *Fiber) {
	setCurrent(f)
	f.setState(StateExec)
	func() {
		defer func() {
			if r := recover(); r != nil {
				f.panicVal = r
				f.setState(StateExcept)
			} else if f.State() == StateExec {
				f.setState(StateTerm)
			}
		}()
		f.fn()
	}()
	clearCurrent()
	f.yieldCh <- struct{}{}

	// Fiber body returned (Term/Except). If later Reset, the goroutine is
	// gone; trampoline is re-launched fresh by swap's started-CAS path.
	for f.State() != StateTerm && f.State() != StateExcept {
		// Defensive: should be unreachable, since swap only resumes
		// Init/Hold/Ready fibers and a fresh goroutine is spawned for Init.
		<-f.resumeCh
	}
}

// SwapIn resumes a Hold/Ready/Init fiber from the scheduling fiber (worker
// loop) that owns the calling goroutine. This is the "scheduler-coupled"
// switch flavor from spec.md 4.1.
func SwapIn(schedulingFiber, taskFiber *Fiber) {
	swap(schedulingFiber, taskFiber)
}

// Call performs the "thread-main-coupled" switch: from a thread's bootstrap
// fiber into the caller-mode scheduling fiber. Used only when the scheduler
// also runs on the caller thread (spec.md 4.1/4.2's caller mode).
func Call(bootstrap, schedulingFiber *Fiber) {
	swap(bootstrap, schedulingFiber)
}

// yieldTo is shared by YieldToHold/YieldToReady: the running fiber records
// its new state then sends control back to whichever goroutine swapped it
// in, blocking until resumed again.
func yieldTo(state State) {
	f := Current()
	if f.bootstrap {
		panic("fiber: cannot yield the bootstrap fiber")
	}
	f.setState(state)
	f.yieldCh <- struct{}{}
	<-f.resumeCh
	f.setState(StateExec)
}

// YieldToHold voluntarily suspends the current fiber in Hold state. The
// resumer must explicitly SwapIn it again; nothing re-enqueues it.
func YieldToHold() {
	yieldTo(StateHold)
}

// YieldToReady voluntarily suspends the current fiber in Ready state,
// signaling the scheduler that it should be re-enqueued for another turn.
func YieldToReady() {
	yieldTo(StateReady)
}
