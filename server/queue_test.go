package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fansqz/midas-dap/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageQueue(t *testing.T) {
	q := NewMessageQueue()
	assert.True(t, q.Put(1))
	assert.True(t, q.Put(2))
	assert.Equal(t, 2, q.Len())

	item, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, 1, item)

	q.Close()
	assert.False(t, q.Put(3))
	// 关闭之前放入的消息仍然可以取出
	item, ok = q.Get()
	require.True(t, ok)
	assert.Equal(t, 2, item)
	_, ok = q.Get()
	assert.False(t, ok)
}

func TestMessageQueue_GetBlocks(t *testing.T) {
	q := NewMessageQueue()
	got := make(chan interface{}, 1)
	go func() {
		item, _ := q.Get()
		got <- item
	}()

	select {
	case <-got:
		t.Fatal("Get returned before Put")
	case <-time.After(20 * time.Millisecond):
	}
	q.Put("hello")
	select {
	case item := <-got:
		assert.Equal(t, "hello", item)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up")
	}
}

func TestMessageQueue_CloseWakesConsumer(t *testing.T) {
	q := NewMessageQueue()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ok := q.Get()
		assert.False(t, ok)
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
}

func TestControlThread_SurvivesPanic(t *testing.T) {
	var mutex sync.Mutex
	var executed []int
	c := NewControlThread(func(j job) {
		if j.index == 0 {
			panic("boom")
		}
		mutex.Lock()
		executed = append(executed, j.index)
		mutex.Unlock()
	})
	request := newRequest(1, "threads", "")
	for i := 0; i < 3; i++ {
		require.True(t, c.Post(job{index: i, request: request}))
	}
	c.Start(context.Background())
	c.Stop()
	assert.False(t, c.Post(job{index: 9, request: request}))

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("control thread did not stop")
	}
	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, []int{1, 2}, executed)
}

func TestEventBus_EmitAfterClose(t *testing.T) {
	s := NewSession(nil, Options{}, nil)
	s.events.Emit("stopped", nil)
	s.events.Queue().Close()
	s.events.Emit("continued", nil)

	assert.Equal(t, 1, s.events.Queue().Len())
	item, ok := s.events.Queue().Get()
	require.True(t, ok)
	assert.Equal(t, "stopped", item.(*protocol.Event).Name())
}
