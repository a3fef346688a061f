package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_EmitInRegistrationOrder(t *testing.T) {
	bus := New[string]()

	var got []string
	bus.Subscribe(func(s string) { got = append(got, "first:"+s) })
	bus.Subscribe(func(s string) { got = append(got, "second:"+s) })
	bus.Subscribe(func(s string) { got = append(got, "third:"+s) })

	bus.Emit("x")

	require.Equal(t, []string{"first:x", "second:x", "third:x"}, got)
}

func TestBus_PanickingSubscriberDoesNotSuppressOthers(t *testing.T) {
	bus := New[int]()

	var after bool
	bus.Subscribe(func(int) { panic("boom") })
	bus.Subscribe(func(int) { after = true })

	require.NotPanics(t, func() { bus.Emit(1) })
	require.True(t, after)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New[int]()

	var a, b int
	unsubA := bus.Subscribe(func(int) { a++ })
	bus.Subscribe(func(int) { b++ })

	bus.Emit(1)
	unsubA()
	unsubA() // second call is a no-op
	bus.Emit(1)

	require.Equal(t, 1, a)
	require.Equal(t, 2, b)
	require.Equal(t, 1, bus.Len())
}

func TestBus_SubscriberAddedDuringEmitNotCalled(t *testing.T) {
	bus := New[int]()

	var lateCalled bool
	bus.Subscribe(func(int) {
		bus.Subscribe(func(int) { lateCalled = true })
	})

	bus.Emit(1)
	require.False(t, lateCalled)

	bus.Emit(2)
	require.True(t, lateCalled)
}
