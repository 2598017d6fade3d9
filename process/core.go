package process

import (
	"runtime"
	"time"

	"github.com/loomrt/loom/fiber"
	"github.com/loomrt/loom/hook"
	"github.com/loomrt/loom/iomanager"
	"github.com/loomrt/loom/log"
)

// core is the process-wide IoManager backing CoSpawn/CoSleep: the
// coroutine/epoll/timer stack (spec.md C1-C4) that Processor/Service above
// run atop ordinary goroutines, while CoSpawn'd work runs as a fiber
// cooperating with hook-based I/O.
var core *iomanager.Manager

// StartCore boots the process-wide IoManager with workerCount OS-scheduled
// workers (one per CPU when workerCount < 1). CoSpawn calls it on first use
// if it has not run yet, and CoSleep does not need it; idempotent after the
// first call.
func StartCore(workerCount int) {
	if core != nil {
		return
	}
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	m, err := iomanager.New(workerCount, false, "core", 0)
	if err != nil {
		log.L().Error("process: failed to start core io manager", log.Err(err))
		return
	}
	core = m
	core.Start()
}

// Core returns the process-wide IoManager, or nil if StartCore has not
// been called yet; used by package metrics to report queue/timer depths.
func Core() *iomanager.Manager { return core }

// StopCore drains and shuts down the process-wide IoManager.
func StopCore() {
	if core == nil {
		return
	}
	core.Stop()
	core.Close()
	core = nil
}

// CoSpawn runs fn as a fiber scheduled on the process-wide core, with
// hooks enabled so fn can call the hook package's blocking-looking but
// cooperative I/O functions directly. Returns immediately; fn runs
// asynchronously. If the core has not been started yet, CoSpawn starts it
// with StartCore(0).
func CoSpawn(fn func()) {
	if core == nil {
		StartCore(0)
	}
	f := fiber.Spawn(func() {
		hook.SetEnabled(true)
		fn()
	}, 0, false)
	core.ScheduleFiber(f, 0)
}

// CoSleep suspends the calling fiber for d without blocking its worker
// thread, if called from inside a CoSpawn'd fiber with hooks enabled;
// otherwise it falls back to a plain blocking sleep, so ordinary
// goroutine-based callers (Processor/Service/Sleep above) keep working.
func CoSleep(d time.Duration) {
	if hook.IsEnabled() {
		hook.Sleep(d)
		return
	}
	time.Sleep(d)
}
