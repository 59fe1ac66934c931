// Package worker_pool runs independent tasks with bounded concurrency and
// returns their results in submission order.
package worker_pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Task represents a unit of work to execute
type Task[T any] func(ctx context.Context) (T, error)

// Result represents the result of a task execution. Index is the task's
// position in the submitted slice.
type Result[T any] struct {
	Index int
	Value T
	Error error
}

// WorkerPool bounds concurrent task execution with a semaphore
type WorkerPool struct {
	maxWorkers int
	semaphore  chan struct{}
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	return &WorkerPool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Run executes all tasks on the pool and returns results in task order.
// A panicking task yields an error result instead of crashing the process.
func Run[T any](ctx context.Context, wp *WorkerPool, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		results[i].Index = i
		wg.Add(1)
		go func(index int, t Task[T]) {
			defer wg.Done()

			// Acquire semaphore (blocks if max workers already running)
			select {
			case wp.semaphore <- struct{}{}:
				defer func() { <-wp.semaphore }()
			case <-ctx.Done():
				results[index].Error = ctx.Err()
				return
			}

			defer func() {
				if p := recover(); p != nil {
					results[index].Error = fmt.Errorf("task %d panicked: %v", index, p)
				}
			}()

			value, err := t(ctx)
			results[index].Value = value
			results[index].Error = err
		}(i, task)
	}

	wg.Wait()
	return results
}
