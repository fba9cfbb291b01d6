package server

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// MessageQueue 线程安全的消息队列，多个生产者，一个消费者阻塞等待
type MessageQueue struct {
	mutex  sync.Mutex
	cond   *sync.Cond
	queue  *linkedlistqueue.Queue
	closed bool
}

func NewMessageQueue() *MessageQueue {
	q := &MessageQueue{queue: linkedlistqueue.New()}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

// Put 放入一条消息，队列关闭之后返回false
func (q *MessageQueue) Put(message interface{}) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return false
	}
	q.queue.Enqueue(message)
	q.cond.Signal()
	return true
}

// Get 阻塞直到取出一条消息；队列关闭并且已经取完时返回false
func (q *MessageQueue) Get() (interface{}, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for q.queue.Empty() && !q.closed {
		q.cond.Wait()
	}
	return q.queue.Dequeue()
}

// Close 关闭队列，已经放入的消息仍然可以取出
func (q *MessageQueue) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *MessageQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.queue.Size()
}
