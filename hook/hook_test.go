package hook

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomrt/loom/fdmeta"
	"github.com/loomrt/loom/fiber"
	"github.com/loomrt/loom/iomanager"
)

// registerSocketpair mirrors what hook.Socket does for a freshly created fd:
// classify it and force it non-blocking at the kernel level, so doIO takes
// the cooperative path instead of bypassing straight to the raw syscall.
func registerSocketpair(fds [2]int) {
	fdmeta.Global().Get(fds[0], true)
	fdmeta.Global().Get(fds[1], true)
}

// runOnCore schedules fn as a hook-enabled fiber on a fresh single-worker
// core and blocks until it returns, failing the test if it doesn't within
// timeout. This is the shape process.CoSpawn uses in production, inlined
// here so the test doesn't depend on package process.
func runOnCore(t *testing.T, fn func(), timeout time.Duration) {
	t.Helper()
	m, err := iomanager.New(1, false, "hook-test", 20*time.Millisecond)
	require.NoError(t, err)
	m.Start()
	defer func() { m.Stop(); m.Close() }()

	done := make(chan struct{})
	f := fiber.Spawn(func() {
		SetEnabled(true)
		fn()
		close(done)
	}, 0, false)
	m.ScheduleFiber(f, 0)

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("hook-enabled fiber never completed")
	}
}

func TestReadWriteRoundTripThroughHooks(t *testing.T) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer syscall.Close(fds[1])
	registerSocketpair(fds)

	runOnCore(t, func() {
		n, err := Write(fds[0], []byte("hello"))
		require.NoError(t, err)
		require.Equal(t, 5, n)
	}, 2*time.Second)

	buf := make([]byte, 5)
	n, err := syscall.Read(fds[1], buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestReadBlocksUntilDataArrivesThenReturns(t *testing.T) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer syscall.Close(fds[1])
	registerSocketpair(fds)

	go func() {
		time.Sleep(30 * time.Millisecond)
		syscall.Write(fds[1], []byte("ping"))
	}()

	runOnCore(t, func() {
		buf := make([]byte, 4)
		n, err := Read(fds[0], buf)
		require.NoError(t, err)
		require.Equal(t, "ping", string(buf[:n]))
	}, 2*time.Second)
}

func TestSleepSuspendsTheFiberNotTheWorker(t *testing.T) {
	start := time.Now()
	runOnCore(t, func() {
		Sleep(30 * time.Millisecond)
	}, 2*time.Second)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSetEnabledIsPerFiber(t *testing.T) {
	require.False(t, IsEnabled())
	SetEnabled(true)
	require.True(t, IsEnabled())
	SetEnabled(false)
}

func TestCloseCancelsEventsBeforeClosing(t *testing.T) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	require.NoError(t, err)
	registerSocketpair(fds)

	runOnCore(t, func() {
		_, err := Write(fds[0], []byte("x"))
		require.NoError(t, err)
		iom := iomanager.Current()
		require.NoError(t, iom.AddEvent(fds[0], iomanager.Read, func() {}))
		require.EqualValues(t, 1, iom.PendingCount())
		require.NoError(t, Close(fds[0]))
		require.EqualValues(t, 0, iom.PendingCount())
	}, 2*time.Second)
	syscall.Close(fds[1])
}
