package eventq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int
	)
	q := New("test", func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	for i := range 100 {
		require.True(t, q.Push(i))
	}
	q.Close()

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("queue did not drain")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := New("test", func(int) {})
	q.Close()
	assert.False(t, q.Push(1))
	<-q.Done()
}

func TestQueueRecoversPanic(t *testing.T) {
	delivered := make(chan int, 2)
	q := New("test", func(v int) {
		if v == 0 {
			panic("boom")
		}
		delivered <- v
	})
	q.Push(0)
	q.Push(1)
	q.Close()
	<-q.Done()
	assert.Equal(t, 1, <-delivered)
}

func TestQueuePushFromHandler(t *testing.T) {
	var q *Queue[int]
	out := make(chan int, 3)
	q = New("test", func(v int) {
		out <- v
		if v < 2 {
			q.Push(v + 1)
		}
	})
	q.Push(0)
	for want := range 3 {
		select {
		case v := <-out:
			assert.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	}
	q.Close()
	<-q.Done()
}
