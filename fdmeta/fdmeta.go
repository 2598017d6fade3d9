// Package fdmeta is the per-descriptor metadata registry hook uses to
// decide whether a call can take the cooperative path (spec.md's "Fd
// metadata (C5 support)"), grounded on myserver's FdCtx/FdManager.
package fdmeta

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// TimeoutKind selects which direction's timeout a Ctx getter/setter acts
// on, mirroring myserver's SO_RCVTIMEO/SO_SNDTIMEO distinction.
type TimeoutKind int

const (
	RecvTimeout TimeoutKind = iota
	SendTimeout
)

// Ctx is the per-fd record: socket-ness, the two non-block flags (kernel-
// forced vs user-requested), closed state, and per-direction timeouts.
type Ctx struct {
	mu sync.Mutex

	fd           int
	isSocket     bool
	sysNonblock  bool
	userNonblock bool
	closed       bool
	recvTimeout  time.Duration
	sendTimeout  time.Duration
}

func (c *Ctx) IsSocket() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.isSocket }
func (c *Ctx) IsClosed() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.closed }

func (c *Ctx) SetUserNonblock(v bool) { c.mu.Lock(); c.userNonblock = v; c.mu.Unlock() }
func (c *Ctx) UserNonblock() bool     { c.mu.Lock(); defer c.mu.Unlock(); return c.userNonblock }
func (c *Ctx) SysNonblock() bool      { c.mu.Lock(); defer c.mu.Unlock(); return c.sysNonblock }

// SetTimeout records the direction's timeout, 0 meaning no timeout (wait
// forever), as set by a hooked setsockopt(SO_RCVTIMEO|SO_SNDTIMEO).
func (c *Ctx) SetTimeout(kind TimeoutKind, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == RecvTimeout {
		c.recvTimeout = d
	} else {
		c.sendTimeout = d
	}
}

// Timeout returns the direction's stored timeout, or -1 meaning none.
func (c *Ctx) Timeout(kind TimeoutKind) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == RecvTimeout {
		if c.recvTimeout == 0 {
			return -1
		}
		return c.recvTimeout
	}
	if c.sendTimeout == 0 {
		return -1
	}
	return c.sendTimeout
}

func (c *Ctx) markClosed() { c.mu.Lock(); c.closed = true; c.mu.Unlock() }

// Registry is the process-wide fd->Ctx map (myserver's singleton
// FdManager), guarded for concurrent growth from many workers.
type Registry struct {
	mu   sync.RWMutex
	data map[int]*Ctx
}

var global = NewRegistry()

// Global returns the process-wide registry hook uses by default.
func Global() *Registry { return global }

func NewRegistry() *Registry {
	return &Registry{data: make(map[int]*Ctx)}
}

// Get returns fd's Ctx, creating it lazily via fstat if autoCreate is set
// and none exists yet. Within package hook only Socket, Accept and
// SetTimeout pass autoCreate; the other hooked calls look up without it,
// so a socketpair- or dup-obtained descriptor has no Ctx until one of
// those (or a direct Get with autoCreate) registers it, and until then
// hooked reads and writes on it go straight to the raw syscall.
func (r *Registry) Get(fd int, autoCreate bool) *Ctx {
	r.mu.RLock()
	c, ok := r.data[fd]
	r.mu.RUnlock()
	if ok {
		return c
	}
	if !autoCreate {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.data[fd]; ok {
		return c
	}
	c = &Ctx{fd: fd}
	c.init()
	r.data[fd] = c
	return c
}

// init fstats fd to classify it as a socket and, if so, forces
// O_NONBLOCK at the kernel level while remembering the caller's
// original non-block intent as "not yet overridden" (spec.md 4.5's
// socket bookkeeping).
func (c *Ctx) init() {
	var st unix.Stat_t
	if err := unix.Fstat(c.fd, &st); err != nil {
		return
	}
	if st.Mode&unix.S_IFMT != unix.S_IFSOCK {
		return
	}
	c.isSocket = true

	flags, err := unix.FcntlInt(uintptr(c.fd), unix.F_GETFL, 0)
	if err != nil {
		return
	}
	if flags&unix.O_NONBLOCK != 0 {
		c.userNonblock = true
	}
	unix.FcntlInt(uintptr(c.fd), unix.F_SETFL, flags|unix.O_NONBLOCK)
	c.sysNonblock = true
}

// Del removes and marks-closed fd's Ctx, mirroring FdManager::del plus the
// hooked close()'s "mark closed before the real close syscall" step.
func (r *Registry) Del(fd int) {
	r.mu.Lock()
	c, ok := r.data[fd]
	if ok {
		delete(r.data, fd)
	}
	r.mu.Unlock()
	if ok {
		c.markClosed()
	}
}
