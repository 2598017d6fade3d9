package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManagerFiresInDeadlineOrder(t *testing.T) {
	m := New(nil)
	var order []int
	record := func(v int) func() { return func() { order = append(order, v) } }
	m.Add(30*time.Millisecond, record(2), false)
	m.Add(10*time.Millisecond, record(0), false)
	m.Add(20*time.Millisecond, record(1), false)

	require.Eventually(t, func() bool {
		var out []func()
		out = m.CollectExpired(out)
		for _, cb := range out {
			cb()
		}
		return len(order) == 3
	}, 200*time.Millisecond, time.Millisecond)

	require.Equal(t, []int{0, 1, 2}, order)
}

func TestOnEarliestChangedFiresOnceUntilQueried(t *testing.T) {
	var calls int32
	m := New(func() { atomic.AddInt32(&calls, 1) })

	m.Add(time.Hour, func() {}, false)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// a later, later-deadline insertion must not re-trigger the hook
	m.Add(2*time.Hour, func() {}, false)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// a new earliest, after the flag is cleared by a deadline query, does
	m.NextDeadline()
	m.Add(time.Minute, func() {}, false)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCancelPreventsFiring(t *testing.T) {
	m := New(nil)
	fired := false
	tm := m.Add(5*time.Millisecond, func() { fired = true }, false)
	require.True(t, tm.Cancel())

	time.Sleep(20 * time.Millisecond)
	var out []func()
	out = m.CollectExpired(out)
	for _, cb := range out {
		cb()
	}
	require.False(t, fired)
	require.False(t, tm.Cancel()) // already gone: idempotent
}

func TestConditionalTimerSkipsDeadWitness(t *testing.T) {
	m := New(nil)
	w := &witness{alive: false}
	fired := false
	m.AddConditional(1*time.Millisecond, func() { fired = true }, w, false)

	time.Sleep(10 * time.Millisecond)
	var out []func()
	out = m.CollectExpired(out)
	for _, cb := range out {
		cb()
	}
	require.False(t, fired)
}

func TestRecurringTimerReInserts(t *testing.T) {
	m := New(nil)
	var n int32
	m.Add(2*time.Millisecond, func() { atomic.AddInt32(&n, 1) }, true)

	require.Eventually(t, func() bool {
		var out []func()
		out = m.CollectExpired(out)
		for _, cb := range out {
			cb()
		}
		return atomic.LoadInt32(&n) >= 3
	}, 200*time.Millisecond, time.Millisecond)
	require.Equal(t, 1, m.Len())
}

type witness struct{ alive bool }

func (w *witness) Alive() bool { return w.alive }
