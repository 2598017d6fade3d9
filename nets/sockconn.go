package nets

import (
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/loomrt/loom/fdmeta"
	"github.com/loomrt/loom/hook"
)

// SockaddrFromTCPAddr converts a resolved net.TCPAddr into the raw
// syscall.Sockaddr the hook layer's Socket/Connect/Accept operate on,
// picking the v4 or v6 family the address actually carries.
func SockaddrFromTCPAddr(a *net.TCPAddr) (syscall.Sockaddr, int, error) {
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &syscall.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa, syscall.AF_INET, nil
	}
	ip6 := a.IP.To16()
	if ip6 == nil {
		return nil, 0, fmt.Errorf("nets: not an IP address: %v", a.IP)
	}
	sa := &syscall.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], ip6)
	return sa, syscall.AF_INET6, nil
}

func TCPAddrFromSockaddr(sa syscall.Sockaddr) net.Addr {
	switch s := sa.(type) {
	case *syscall.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}
	case *syscall.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}
	default:
		return nil
	}
}

// ListenTCPSocket creates, binds and listens a raw socket through the hook
// layer's Socket entry point, so the returned fd carries fdmeta bookkeeping
// from the moment it exists (spec.md 4.5's socket() hook step). Exported so
// other hook-based listeners (http1's server) can share it instead of
// reimplementing the bind/listen dance.
func ListenTCPSocket(addr *net.TCPAddr) (int, error) {
	sa, family, err := SockaddrFromTCPAddr(addr)
	if err != nil {
		return -1, err
	}
	fd, err := hook.Socket(family, syscall.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		hook.Close(fd)
		return -1, err
	}
	if err := syscall.Bind(fd, sa); err != nil {
		hook.Close(fd)
		return -1, err
	}
	if err := syscall.Listen(fd, 512); err != nil {
		hook.Close(fd)
		return -1, err
	}
	return fd, nil
}

// DialTCPSocket creates a socket through the hook layer and connects it
// with a bounded timeout, matching myserver's connect_with_timeout usage
// from the TCP dialer.
func DialTCPSocket(addr *net.TCPAddr, timeout time.Duration) (int, net.Addr, error) {
	sa, family, err := SockaddrFromTCPAddr(addr)
	if err != nil {
		return -1, nil, err
	}
	fd, err := hook.Socket(family, syscall.SOCK_STREAM, 0)
	if err != nil {
		return -1, nil, err
	}
	if err := hook.ConnectTimeout(fd, sa, timeout); err != nil {
		hook.Close(fd)
		return -1, nil, err
	}
	return fd, TCPAddrFromSockaddr(sa), nil
}

// HookConn is a net.Conn adapter over a raw fd whose reads/writes are
// serviced by the hook layer's cooperative I/O, so ConnectManager and the
// rest of nets (and http1's session) can keep treating every transport
// uniformly as a net.Conn while the actual bytes move through the
// coroutine/epoll core instead of a goroutine blocked in the kernel.
type HookConn struct {
	fd            int
	local, remote net.Addr
}

func NewHookConn(fd int, local, remote net.Addr) *HookConn {
	return &HookConn{fd: fd, local: local, remote: remote}
}

func (c *HookConn) Read(b []byte) (int, error) {
	n, err := hook.Read(c.fd, b)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *HookConn) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := hook.Write(c.fd, b[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (c *HookConn) Close() error         { return hook.Close(c.fd) }
func (c *HookConn) LocalAddr() net.Addr  { return c.local }
func (c *HookConn) RemoteAddr() net.Addr { return c.remote }

func (c *HookConn) SetDeadline(t time.Time) error {
	d := deadlineDuration(t)
	hook.SetTimeout(c.fd, fdmeta.RecvTimeout, d)
	hook.SetTimeout(c.fd, fdmeta.SendTimeout, d)
	return nil
}

func (c *HookConn) SetReadDeadline(t time.Time) error {
	hook.SetTimeout(c.fd, fdmeta.RecvTimeout, deadlineDuration(t))
	return nil
}

func (c *HookConn) SetWriteDeadline(t time.Time) error {
	hook.SetTimeout(c.fd, fdmeta.SendTimeout, deadlineDuration(t))
	return nil
}

// deadlineDuration turns an absolute net.Conn deadline into the relative
// duration fdmeta.Ctx stores, 0 meaning "no timeout" for both APIs.
func deadlineDuration(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	return d
}
