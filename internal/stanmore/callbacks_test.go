package stanmore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackRegistryIDsIncreaseFromOne(t *testing.T) {
	r := NewCallbackRegistry[func()](nil)

	for want := 1; want <= 5; want++ {
		id := r.Register(func() {})
		assert.Equal(t, want, id)
	}
	assert.Equal(t, 5, r.Len())
}

func TestCallbackRegistryCancel(t *testing.T) {
	r := NewCallbackRegistry[func()](nil)

	first := r.Register(func() {})
	second := r.Register(func() {})
	third := r.Register(func() {})

	require.NoError(t, r.Cancel(second))
	assert.Equal(t, 2, r.Len())

	// Cancelling a non-final ID does not disturb the others.
	require.NoError(t, r.Cancel(first))
	require.NoError(t, r.Cancel(third))
	assert.Zero(t, r.Len())
}

func TestCallbackRegistryCancelUnknownID(t *testing.T) {
	r := NewCallbackRegistry[func()](nil)

	err := r.Cancel(42)
	assert.ErrorIs(t, err, ErrUnknownCallbackID)

	id := r.Register(func() {})
	require.NoError(t, r.Cancel(id))
	err = r.Cancel(id)
	assert.ErrorIs(t, err, ErrUnknownCallbackID, "cancelling twice must fail")
}

func TestCallbackRegistryIDsAfterCancel(t *testing.T) {
	r := NewCallbackRegistry[func()](nil)

	first := r.Register(func() {})
	second := r.Register(func() {})

	// Cancelling an older entry leaves the high-water mark in place.
	require.NoError(t, r.Cancel(first))
	assert.Equal(t, 3, r.Register(func() {}))

	// IDs derive from the newest live entry, so cancelling everything
	// restarts the sequence.
	require.NoError(t, r.Cancel(second))
	require.NoError(t, r.Cancel(3))
	assert.Equal(t, 1, r.Register(func() {}))
}

func TestCallbackRegistryDispatchOrder(t *testing.T) {
	r := NewCallbackRegistry[func(int)](nil)

	var order []string
	r.Register(func(v int) { order = append(order, "a") })
	r.Register(func(v int) { order = append(order, "b") })
	r.Register(func(v int) { order = append(order, "c") })

	r.Dispatch(func(cb func(int)) { cb(7) })
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestCallbackRegistryDispatchArguments(t *testing.T) {
	r := NewCallbackRegistry[func(int)](nil)

	var got []int
	r.Register(func(v int) { got = append(got, v) })
	r.Register(func(v int) { got = append(got, v) })

	r.Dispatch(func(cb func(int)) { cb(21) })
	assert.Equal(t, []int{21, 21}, got, "every handler receives identical arguments")
}

func TestCallbackRegistryPanicIsolation(t *testing.T) {
	r := NewCallbackRegistry[func()](nil)

	var survived bool
	r.Register(func() { panic("boom") })
	r.Register(func() { survived = true })

	r.Dispatch(func(cb func()) { cb() })
	assert.True(t, survived, "a panicking handler must not block the rest")
}

func TestCallbackRegistryDispatchAfterCancel(t *testing.T) {
	r := NewCallbackRegistry[func()](nil)

	var calls int
	r.Register(func() { calls++ })
	id := r.Register(func() { calls += 100 })
	r.Register(func() { calls++ })

	require.NoError(t, r.Cancel(id))
	r.Dispatch(func(cb func()) { cb() })
	assert.Equal(t, 2, calls)
}
