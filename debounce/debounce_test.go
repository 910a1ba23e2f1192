package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncer_RunsLastCallOnly(t *testing.T) {
	d := New(20 * time.Millisecond)

	var calls atomic.Int32
	var last atomic.Value
	for _, v := range []string{"en", "fr", "de"} {
		d.Do(func() {
			calls.Add(1)
			last.Store(v)
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "de", last.Load())

	// nothing else fires afterwards
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_ZeroDelayRunsSynchronously(t *testing.T) {
	d := New(0)

	called := false
	d.Do(func() { called = true })
	require.True(t, called)
}

func TestDebouncer_Stop(t *testing.T) {
	d := New(10 * time.Millisecond)

	var calls atomic.Int32
	d.Do(func() { calls.Add(1) })
	d.Stop()
	d.Do(func() { calls.Add(1) })

	time.Sleep(40 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())
}
