// Package hook is the C5 syscall-interception layer, translated per
// SPEC_FULL.md's Go-translation note: instead of intercepting libc
// symbols (Go has no supported link-time symbol replacement) it exposes
// an explicit async I/O API, bit-for-bit parameter-compatible with the
// POSIX calls spec.md section 6 lists, operating on raw file descriptors.
// Enablement is per-Fiber rather than per-OS-thread, grounded on
// myserver's hook.cc do_io/sleep/connect_with_timeout templates.
package hook

import (
	"sync/atomic"
	"syscall"
	"time"

	"github.com/loomrt/loom/fdmeta"
	"github.com/loomrt/loom/fiber"
	"github.com/loomrt/loom/iomanager"
	"github.com/loomrt/loom/log"
)

// slowPathCount and fastPathCount back the hook slow-path rate metric
// (SPEC_FULL.md's domain stack entry for prometheus): every hooked call
// that has to register an event and yield, versus one the raw syscall
// satisfied immediately.
var slowPathCount, fastPathCount int64

// Counts returns the cumulative fast-path and slow-path call counts since
// process start, for package metrics to derive a rate from.
func Counts() (fast, slow int64) {
	return atomic.LoadInt64(&fastPathCount), atomic.LoadInt64(&slowPathCount)
}

// IsEnabled reports whether the calling fiber has hooks enabled.
func IsEnabled() bool { return fiber.Current().HookEnabled() }

// SetEnabled toggles hooks for the calling fiber. The scheduler loop
// enables hooks before running any task fiber and this is otherwise
// disabled by default, matching spec.md 4.5.
func SetEnabled(v bool) { fiber.Current().SetHookEnabled(v) }

// timerInfo is the shared arbitration record between a fired event and a
// conditional timeout timer (myserver's timer_info): cancelled holds 0
// while pending, or the errno to report once either side resolves it.
type timerInfo struct {
	cancelled syscall.Errno
}

func (t *timerInfo) Alive() bool { return t != nil }

// Sleep registers a one-shot timer and yields to hold instead of calling
// the real blocking sleep, never blocking the worker thread.
func Sleep(d time.Duration) {
	if !IsEnabled() {
		time.Sleep(d)
		return
	}
	f := fiber.Current()
	iom := iomanager.Current()
	if iom == nil {
		time.Sleep(d)
		return
	}
	iom.Add(d, func() { iom.ScheduleFiber(f, 0) }, false)
	fiber.YieldToHold()
}

// Socket wraps syscall.Socket, registering the resulting fd's fdmeta.Ctx
// (myserver's socket() hook bookkeeping step).
func Socket(domain, typ, proto int) (int, error) {
	fd, err := syscall.Socket(domain, typ, proto)
	if err != nil {
		return -1, err
	}
	fdmeta.Global().Get(fd, true)
	return fd, nil
}

// doIO is the generic read/write/accept template from spec.md 4.5: try
// the raw syscall, and on EAGAIN register an event (plus an optional
// timeout) and yield, retrying once woken.
func doIO(fd int, dir iomanager.Direction, timeoutKind fdmeta.TimeoutKind, try func() (int, error)) (int, error) {
	if !IsEnabled() {
		return try()
	}
	ctx := fdmeta.Global().Get(fd, false)
	if ctx == nil {
		return try()
	}
	if ctx.IsClosed() {
		return -1, syscall.EBADF
	}
	if !ctx.IsSocket() || ctx.UserNonblock() {
		return try()
	}

	iom := iomanager.Current()
	if iom == nil {
		return try()
	}
	timeout := ctx.Timeout(timeoutKind)

	for {
		n, err := try()
		for err == syscall.EINTR {
			n, err = try()
		}
		if err != syscall.EAGAIN && err != syscall.EWOULDBLOCK {
			atomic.AddInt64(&fastPathCount, 1)
			return n, err
		}
		atomic.AddInt64(&slowPathCount, 1)

		info := &timerInfo{}
		var tm *iomanagerTimer
		if timeout >= 0 {
			tm = newTimer(iom, timeout, fd, dir, info)
		}

		f := fiber.Current()
		if addErr := iom.AddEvent(fd, dir, func() { iom.ScheduleFiber(f, 0) }); addErr != nil {
			if tm != nil {
				tm.cancel()
			}
			log.L().Error("hook: add_event failed", log.Err(addErr))
			return -1, syscall.EIO
		}

		fiber.YieldToHold()
		if tm != nil {
			tm.cancel()
		}
		if info.cancelled != 0 {
			return -1, info.cancelled
		}
		// woken by the event firing: resource is believed ready, retry.
	}
}

// iomanagerTimer is the thin handle doIO needs around timer.Timer,
// isolated so this file doesn't import package timer directly for a
// single cancel call.
type iomanagerTimer struct {
	cancel func()
}

func newTimer(iom *iomanager.Manager, d time.Duration, fd int, dir iomanager.Direction, info *timerInfo) *iomanagerTimer {
	t := iom.AddConditional(d, func() {
		if info.cancelled != 0 {
			return
		}
		info.cancelled = syscall.ETIMEDOUT
		iom.CancelEvent(fd, dir)
	}, info, false)
	return &iomanagerTimer{cancel: func() { t.Cancel() }}
}

// Read is the hooked read/recv-family entry point.
func Read(fd int, buf []byte) (int, error) {
	return doIO(fd, iomanager.Read, fdmeta.RecvTimeout, func() (int, error) {
		return syscall.Read(fd, buf)
	})
}

// Write is the hooked write/send-family entry point.
func Write(fd int, buf []byte) (int, error) {
	return doIO(fd, iomanager.Write, fdmeta.SendTimeout, func() (int, error) {
		return syscall.Write(fd, buf)
	})
}

// Accept is the hooked accept entry point; on success the new fd is
// registered in fdmeta, matching myserver's accept() hook.
func Accept(fd int) (int, syscall.Sockaddr, error) {
	var nfd int
	var sa syscall.Sockaddr
	_, err := doIO(fd, iomanager.Read, fdmeta.RecvTimeout, func() (int, error) {
		n, s, e := syscall.Accept(fd)
		nfd, sa = n, s
		if e != nil {
			return -1, e
		}
		return n, nil
	})
	if err != nil {
		return -1, nil, err
	}
	fdmeta.Global().Get(nfd, true)
	return nfd, sa, nil
}

// Connect is the hooked connect entry point. It takes its deadline from the
// timeout argument and behaves exactly like ConnectTimeout; there is no
// process-wide default connect timeout.
func Connect(fd int, addr syscall.Sockaddr, timeout time.Duration) error {
	return connectTimeout(fd, addr, timeout)
}

// ConnectTimeout is myserver's connect_with_timeout: a deadline
// independent of the fd's stored send/receive timeout, used by nets'
// dialer (spec.md's SUPPLEMENTED FEATURES).
func ConnectTimeout(fd int, addr syscall.Sockaddr, timeout time.Duration) error {
	return connectTimeout(fd, addr, timeout)
}

func connectTimeout(fd int, addr syscall.Sockaddr, timeout time.Duration) error {
	ctx := fdmeta.Global().Get(fd, false)
	if ctx == nil || ctx.IsClosed() {
		return syscall.EBADF
	}
	if !IsEnabled() || ctx.UserNonblock() || !ctx.IsSocket() {
		return syscall.Connect(fd, addr)
	}

	err := syscall.Connect(fd, addr)
	if err == nil {
		return nil
	}
	if err != syscall.EINPROGRESS {
		return err
	}

	iom := iomanager.Current()
	if iom == nil {
		return err
	}

	info := &timerInfo{}
	var tm *iomanagerTimer
	if timeout >= 0 {
		tm = newTimer(iom, timeout, fd, iomanager.Write, info)
	}

	f := fiber.Current()
	if addErr := iom.AddEvent(fd, iomanager.Write, func() { iom.ScheduleFiber(f, 0) }); addErr != nil {
		if tm != nil {
			tm.cancel()
		}
		return addErr
	}
	fiber.YieldToHold()
	if tm != nil {
		tm.cancel()
	}
	if info.cancelled != 0 {
		return info.cancelled
	}

	soErr, gerr := syscall.GetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_ERROR)
	if gerr != nil {
		return gerr
	}
	if soErr != 0 {
		return syscall.Errno(soErr)
	}
	return nil
}

// Close cancels every registered event on fd (firing their continuations)
// and removes its fdmeta.Ctx before closing, matching myserver's close()
// hook ordering.
func Close(fd int) error {
	ctx := fdmeta.Global().Get(fd, false)
	if ctx != nil {
		if iom := iomanager.Current(); iom != nil {
			iom.CancelAll(fd)
		}
		fdmeta.Global().Del(fd)
	}
	return syscall.Close(fd)
}

// SetNonblock is the hooked ioctl(FIONBIO)/fcntl(F_SETFL, O_NONBLOCK)
// entry point: it only ever updates the user's intent, never the
// kernel-forced flag hook itself relies on.
func SetNonblock(fd int, v bool) {
	ctx := fdmeta.Global().Get(fd, false)
	if ctx == nil || ctx.IsClosed() || !ctx.IsSocket() {
		syscall.SetNonblock(fd, v)
		return
	}
	ctx.SetUserNonblock(v)
}

// SetTimeout is the hooked setsockopt(SO_RCVTIMEO|SO_SNDTIMEO) entry
// point: it only updates fdmeta so later hooked reads/writes honor it.
func SetTimeout(fd int, kind fdmeta.TimeoutKind, d time.Duration) {
	ctx := fdmeta.Global().Get(fd, true)
	ctx.SetTimeout(kind, d)
}
