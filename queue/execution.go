// Package queue serializes write calls against the platform. Calls are drained by a
// single worker, and a call is delayed by the interval of its category whenever a
// call of the same category ran before it.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

// Category groups calls that share one pacing interval.
type Category string

const (
	// Unpaced calls are serialized but never delayed.
	Unpaced  Category = ""
	Deletion Category = "delete"
	Creation Category = "create"
	Emoji    Category = "emoji"
)

// ErrClosed is returned by Do once the queue has been closed.
var ErrClosed = errors.New("execution queue closed")

// Intervals maps each category to the pause inserted between two of its calls.
type Intervals map[Category]time.Duration

// DefaultIntervals returns the pacing that keeps a restore below the platform limits.
func DefaultIntervals() Intervals {
	return Intervals{
		Deletion: 100 * time.Millisecond,
		Creation: 200 * time.Millisecond,
		Emoji:    300 * time.Millisecond,
	}
}

// Task is a single write call.
type Task func(ctx context.Context) error

type queuedTask struct {
	ctx      context.Context
	category Category
	task     Task
	result   chan error
}

// ExecutionQueue runs tasks one at a time in submission order.
type ExecutionQueue struct {
	clock     clock.Clock
	intervals Intervals
	log       logr.Logger

	tasks   chan *queuedTask
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mutex     sync.Mutex
	issued    map[Category]int
	suspended map[Category]time.Duration
}

// NewExecutionQueue starts the worker. Close must be called to release it.
func NewExecutionQueue(clk clock.Clock, intervals Intervals, log logr.Logger) *ExecutionQueue {
	if clk == nil {
		clk = clock.RealClock{}
	}
	q := &ExecutionQueue{
		clock:     clk,
		intervals: intervals,
		log:       log.WithName("queue"),
		tasks:     make(chan *queuedTask),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		issued:    make(map[Category]int),
		suspended: make(map[Category]time.Duration),
	}
	go q.work()
	return q
}

// Do enqueues the task and blocks until it has run, returning its error.
func (q *ExecutionQueue) Do(ctx context.Context, category Category, task Task) error {
	qt := &queuedTask{ctx: ctx, category: category, task: task, result: make(chan error, 1)}
	select {
	case q.tasks <- qt:
	case <-q.done:
		return ErrClosed
	}
	select {
	case err := <-qt.result:
		return err
	case <-q.stopped:
		return ErrClosed
	}
}

// Close stops the worker after the running task finished.
func (q *ExecutionQueue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
	<-q.stopped
}

// Issued returns how many calls of the category have been run.
func (q *ExecutionQueue) Issued(category Category) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.issued[category]
}

// Suspended returns the cumulative pause inserted before calls of the category.
func (q *ExecutionQueue) Suspended(category Category) time.Duration {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.suspended[category]
}

func (q *ExecutionQueue) work() {
	defer close(q.stopped)
	for {
		select {
		case qt := <-q.tasks:
			q.run(qt)
		case <-q.done:
			return
		}
	}
}

func (q *ExecutionQueue) run(qt *queuedTask) {
	q.mutex.Lock()
	previous := q.issued[qt.category]
	q.mutex.Unlock()

	if interval := q.intervals[qt.category]; previous > 0 && interval > 0 && qt.category != Unpaced {
		q.log.V(1).Info("pacing", "category", qt.category, "interval", interval)
		q.clock.Sleep(interval)
		q.mutex.Lock()
		q.suspended[qt.category] += interval
		q.mutex.Unlock()
	}

	err := qt.task(qt.ctx)

	q.mutex.Lock()
	q.issued[qt.category]++
	q.mutex.Unlock()
	qt.result <- err
}
