// Package timer provides a deterministic queue of cancellable tasks keyed by
// fire time. It replaces wall-clock timers: the owner drives it by calling
// RunDue with its own notion of "now".
package timer

import (
	"container/heap"
	"errors"
	"time"
)

// ErrClosed is returned when scheduling on a closed queue.
var ErrClosed = errors.New("timer queue closed")

// Task is a scheduled callback. It can be cancelled until it fires.
type Task struct {
	at    time.Duration
	seq   uint64
	fn    func()
	index int // position in the heap, -1 once removed
	queue *Queue
}

// At returns the task's fire time.
func (t *Task) At() time.Duration {
	return t.at
}

// Pending reports whether the task has neither fired nor been cancelled.
func (t *Task) Pending() bool {
	return t != nil && t.index >= 0
}

// Cancel removes the task from its queue. It returns false if the task
// already fired or was cancelled.
func (t *Task) Cancel() bool {
	if !t.Pending() {
		return false
	}
	heap.Remove(&t.queue.tasks, t.index)
	return true
}

// taskHeap implements heap.Interface as a min-heap by fire time with FIFO
// tie-breaking on seq.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Queue holds pending tasks. It is not safe for concurrent use.
type Queue struct {
	tasks  taskHeap
	seq    uint64
	closed bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Schedule registers fn to run once RunDue reaches at.
func (q *Queue) Schedule(at time.Duration, fn func()) (*Task, error) {
	if q.closed {
		return nil, ErrClosed
	}
	q.seq++
	t := &Task{at: at, seq: q.seq, fn: fn, queue: q}
	heap.Push(&q.tasks, t)
	return t, nil
}

// RunDue fires, in time order, every task with fire time <= now and returns
// how many ran. Tasks scheduled by a callback for a time <= now also run.
func (q *Queue) RunDue(now time.Duration) int {
	n := 0
	for !q.closed && len(q.tasks) > 0 && q.tasks[0].at <= now {
		t := heap.Pop(&q.tasks).(*Task)
		t.fn()
		n++
	}
	return n
}

// Next returns the earliest pending fire time.
func (q *Queue) Next() (time.Duration, bool) {
	if len(q.tasks) == 0 {
		return 0, false
	}
	return q.tasks[0].at, true
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Clear cancels every pending task.
func (q *Queue) Clear() {
	for _, t := range q.tasks {
		t.index = -1
	}
	q.tasks = nil
}

// Close cancels every pending task and rejects further scheduling.
func (q *Queue) Close() {
	q.Clear()
	q.closed = true
}
