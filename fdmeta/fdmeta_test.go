package fdmeta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestGetClassifiesSocketAndForcesNonblock(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	r := NewRegistry()
	ctx := r.Get(fds[0], true)
	require.NotNil(t, ctx)
	require.True(t, ctx.IsSocket())
	require.False(t, ctx.IsClosed())

	flags, err := unix.FcntlInt(uintptr(fds[0]), unix.F_GETFL, 0)
	require.NoError(t, err)
	require.NotZero(t, flags&unix.O_NONBLOCK)
}

func TestGetWithoutAutoCreateReturnsNil(t *testing.T) {
	r := NewRegistry()
	require.Nil(t, r.Get(99999, false))
}

func TestGetIsIdempotentPerFd(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	r := NewRegistry()
	a := r.Get(fds[0], true)
	b := r.Get(fds[0], true)
	require.Same(t, a, b)
}

func TestDelMarksClosed(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	r := NewRegistry()
	ctx := r.Get(fds[0], true)
	r.Del(fds[0])
	require.True(t, ctx.IsClosed())
	require.Nil(t, r.Get(fds[0], false))
}

func TestTimeoutDefaultsToNone(t *testing.T) {
	ctx := &Ctx{}
	require.Equal(t, time.Duration(-1), ctx.Timeout(RecvTimeout))
	ctx.SetTimeout(RecvTimeout, 5*time.Second)
	require.Equal(t, 5*time.Second, ctx.Timeout(RecvTimeout))
	require.Equal(t, time.Duration(-1), ctx.Timeout(SendTimeout))
}

func TestUserNonblockRoundTrips(t *testing.T) {
	ctx := &Ctx{}
	require.False(t, ctx.UserNonblock())
	ctx.SetUserNonblock(true)
	require.True(t, ctx.UserNonblock())
}
