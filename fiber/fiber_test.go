package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpawnRunsToTermination(t *testing.T) {
	main := Current()
	ran := false
	f := Spawn(func() { ran = true }, 0, false)
	require.Equal(t, StateInit, f.State())

	SwapIn(main, f)
	require.True(t, ran)
	require.Equal(t, StateTerm, f.State())
}

func TestYieldToHoldSuspendsAndResumes(t *testing.T) {
	main := Current()
	var steps []string
	f := Spawn(func() {
		steps = append(steps, "a")
		YieldToHold()
		steps = append(steps, "b")
	}, 0, false)

	SwapIn(main, f)
	require.Equal(t, []string{"a"}, steps)
	require.Equal(t, StateHold, f.State())

	SwapIn(main, f)
	require.Equal(t, []string{"a", "b"}, steps)
	require.Equal(t, StateTerm, f.State())
}

func TestYieldToReadyMarksReady(t *testing.T) {
	main := Current()
	f := Spawn(func() {
		YieldToReady()
	}, 0, false)

	SwapIn(main, f)
	require.Equal(t, StateReady, f.State())
}

func TestPanicInsideFiberBecomesExcept(t *testing.T) {
	main := Current()
	f := Spawn(func() {
		panic("boom")
	}, 0, false)

	SwapIn(main, f)
	require.Equal(t, StateExcept, f.State())
	require.Equal(t, "boom", f.Err())
}

func TestResetReusesATerminatedFiber(t *testing.T) {
	main := Current()
	f := Spawn(func() {}, 0, false)
	SwapIn(main, f)
	require.Equal(t, StateTerm, f.State())

	ran := false
	f.Reset(func() { ran = true })
	require.Equal(t, StateInit, f.State())
	SwapIn(main, f)
	require.True(t, ran)
}

func TestResetOfRunningFiberPanics(t *testing.T) {
	main := Current()
	f := Spawn(func() { YieldToHold() }, 0, false)
	SwapIn(main, f)
	require.Equal(t, StateHold, f.State())

	require.Panics(t, func() { f.Reset(func() {}) })
}

func TestSwapIntoSelfPanics(t *testing.T) {
	require.Panics(t, func() { swap(Current(), Current()) })
}

func TestMetaRoundTrips(t *testing.T) {
	f := Spawn(func() {}, 0, false)
	require.Nil(t, f.Meta())
	f.SetMeta(42)
	require.Equal(t, 42, f.Meta())
}

func TestHookEnabledDefaultsFalse(t *testing.T) {
	f := Spawn(func() {}, 0, false)
	require.False(t, f.HookEnabled())
	f.SetHookEnabled(true)
	require.True(t, f.HookEnabled())
}
