package iomanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/loomrt/loom/fiber"
)

func TestAddEventFiresOnReadable(t *testing.T) {
	m, err := New(1, false, "io-test-1", 50*time.Millisecond)
	require.NoError(t, err)
	m.Start()
	defer func() { m.Stop(); m.Close() }()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])
	rfd := fds[0]
	defer unix.Close(rfd)

	fired := make(chan struct{})
	require.NoError(t, m.AddEvent(rfd, Read, func() { close(fired) }))

	_, err = unix.Write(fds[1], []byte("hi"))
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("read event never fired")
	}
}

func TestCancelAllWakesPendingFiber(t *testing.T) {
	m, err := New(1, false, "io-test-2", 50*time.Millisecond)
	require.NoError(t, err)
	m.Start()
	defer func() { m.Stop(); m.Close() }()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	woken := make(chan struct{})
	f := fiber.Spawn(func() {
		self := fiber.Current()
		require.NoError(t, m.AddEvent(fds[0], Read, func() { m.ScheduleFiber(self, 0) }))
		fiber.YieldToHold()
		close(woken)
	}, 0, false)
	m.ScheduleFiber(f, 0)

	time.Sleep(20 * time.Millisecond) // let the fiber register and park
	m.CancelAll(fds[0])

	select {
	case <-woken:
	case <-time.After(2 * time.Second):
		t.Fatal("fiber was never woken by CancelAll")
	}
}

func TestTimerMergesIntoIdleWait(t *testing.T) {
	m, err := New(1, false, "io-test-3", 20*time.Millisecond)
	require.NoError(t, err)
	m.Start()
	defer func() { m.Stop(); m.Close() }()

	fired := make(chan struct{})
	m.Add(10*time.Millisecond, func() { close(fired) }, false)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired through the idle loop")
	}
}

func TestPendingCountTracksRegistrations(t *testing.T) {
	m, err := New(1, false, "io-test-4", 50*time.Millisecond)
	require.NoError(t, err)
	m.Start()
	defer func() { m.Stop(); m.Close() }()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.EqualValues(t, 0, m.PendingCount())
	require.NoError(t, m.AddEvent(fds[0], Read, func() {}))
	require.EqualValues(t, 1, m.PendingCount())
	m.CancelAll(fds[0])
	require.EqualValues(t, 0, m.PendingCount())
}
