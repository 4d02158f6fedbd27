package dbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushFlushPop(t *testing.T) {
	b := New[int](4)

	require.True(t, b.TryPush(1))
	require.True(t, b.TryPush(2))
	require.Equal(t, uint64(2), b.PendingWrites())

	var out int
	require.False(t, b.TryPop(&out)) // nothing flushed yet

	b.Flush()
	require.Equal(t, uint64(2), b.PendingReads())

	require.True(t, b.TryPop(&out))
	require.Equal(t, 1, out)
	require.True(t, b.TryPop(&out))
	require.Equal(t, 2, out)
	require.False(t, b.TryPop(&out))
	require.True(t, b.Empty())
}

func TestFullRejectsPush(t *testing.T) {
	b := New[int](2)
	require.True(t, b.TryPush(1))
	require.True(t, b.TryPush(2))
	require.True(t, b.Full())
	require.False(t, b.TryPush(3))
}

func TestFlushNoOpWhenNoPendingWrites(t *testing.T) {
	b := New[int](2)
	b.Flush() // must not hang or panic
	require.True(t, b.Empty())
}

func TestBufferRoundTripsAcrossMultipleFlushes(t *testing.T) {
	b := New[int](3)

	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			require.True(t, b.TryPush(round*10 + i))
		}
		b.Flush()
		for i := 0; i < 3; i++ {
			var out int
			require.True(t, b.TryPop(&out))
			require.Equal(t, round*10+i, out)
		}
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	b := New[int](8)
	const total = 5000
	done := make(chan struct{})

	go func() {
		defer close(done)
		seen := 0
		var out int
		for seen < total {
			if b.TryPop(&out) {
				seen++
			}
		}
	}()

	pushed := 0
	for pushed < total {
		if b.TryPush(pushed) {
			pushed++
		} else {
			b.Flush()
		}
	}
	b.Flush()
	<-done
}
