package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateAndGet(t *testing.T) {
	a := New[int](4)

	i0 := a.Allocate(10)
	i1 := a.Allocate(20)
	require.Equal(t, Index(0), i0)
	require.Equal(t, Index(1), i1)
	require.Equal(t, 10, a.At(i0))
	require.Equal(t, 20, a.At(i1))

	*a.Get(i0) = 11
	require.Equal(t, 11, a.At(i0))
}

func TestFreeListIsLIFO(t *testing.T) {
	a := New[string](4)

	i0 := a.Allocate("a")
	i1 := a.Allocate("b")
	a.Free(i0)
	a.Free(i1)

	// LIFO: the most recently freed slot (i1) is handed back first.
	reused := a.Allocate("c")
	require.Equal(t, i1, reused)
	require.Equal(t, "c", a.At(reused))

	reused2 := a.Allocate("d")
	require.Equal(t, i0, reused2)
}

func TestOverflowReturnsInvalid(t *testing.T) {
	a := New[int](2)

	require.NotEqual(t, Invalid, a.Allocate(1))
	require.NotEqual(t, Invalid, a.Allocate(2))
	require.Equal(t, Invalid, a.Allocate(3))
}

func TestFreedSlotUnblocksOverflow(t *testing.T) {
	a := New[int](1)

	i0 := a.Allocate(1)
	require.Equal(t, Invalid, a.Allocate(2))

	a.Free(i0)
	i1 := a.Allocate(3)
	require.NotEqual(t, Invalid, i1)
	require.Equal(t, 3, a.At(i1))
}

func TestReset(t *testing.T) {
	a := New[int](4)
	a.Allocate(1)
	a.Allocate(2)
	a.Free(Index(0))

	a.Reset()
	require.Equal(t, 0, a.Len())

	i0 := a.Allocate(9)
	require.Equal(t, Index(0), i0)
}
