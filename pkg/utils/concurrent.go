package utils

import (
	"context"
	"sync"
)

// DefaultConcurrency caps fan-out when a caller passes a non-positive size.
const DefaultConcurrency = 3

// Worker processes one item.
type Worker[T any, R any] func(ctx context.Context, item T) (R, error)

// WorkerPool runs a Worker over a batch with at most numWorkers items in
// flight.
//
// Items complete in no particular order, so results and errors are returned
// in maps keyed by the index of the item in the input slice. An index is in
// exactly one of the two maps once ProcessItems returns, unless the context
// was cancelled before the item was picked up; such items get ctx.Err().
// Panics in a worker are recovered and reported as *PanicError.
//
// Example:
//
//	pool := NewWorkerPool(4, func(ctx context.Context, item string) (int, error) {
//	    return len(item), nil
//	})
//	results, errs := pool.ProcessItems(ctx, []string{"a", "bb", "ccc"})
type WorkerPool[T any, R any] struct {
	numWorkers int
	worker     Worker[T, R]
	onResult   func(index int, result R, err error)
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool[T any, R any](numWorkers int, worker Worker[T, R]) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = DefaultConcurrency
	}
	return &WorkerPool[T, R]{
		numWorkers: numWorkers,
		worker:     worker,
	}
}

// OnResult registers a callback run as soon as an item finishes, in
// completion order. Calls are serialized.
func (wp *WorkerPool[T, R]) OnResult(fn func(index int, result R, err error)) *WorkerPool[T, R] {
	wp.onResult = fn
	return wp
}

// Size returns the number of workers.
func (wp *WorkerPool[T, R]) Size() int {
	return wp.numWorkers
}

type indexed[T any] struct {
	index int
	item  T
}

// ProcessItems processes items using the worker pool and blocks until every
// item has either finished or been abandoned because ctx was cancelled.
func (wp *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) (map[int]R, map[int]error) {
	results := make(map[int]R, len(items))
	errs := make(map[int]error)
	if len(items) == 0 {
		return results, errs
	}

	queue := make(chan indexed[T], len(items))
	for i, item := range items {
		queue <- indexed[T]{index: i, item: item}
	}
	close(queue)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(index int, result R, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs[index] = err
		} else {
			results[index] = result
		}
		if wp.onResult != nil {
			wp.onResult(index, result, err)
		}
	}

	workers := min(wp.numWorkers, len(items))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				if err := ctx.Err(); err != nil {
					var zero R
					record(job.index, zero, err)
					continue
				}
				result, err := wp.run(ctx, job.item)
				record(job.index, result, err)
			}
		}()
	}

	wg.Wait()
	return results, errs
}

func (wp *WorkerPool[T, R]) run(ctx context.Context, item T) (result R, err error) {
	defer RecoverAsError(&err)
	return wp.worker(ctx, item)
}

// Batch splits items into consecutive slices of at most batchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 10
	}

	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}
	return batches
}
