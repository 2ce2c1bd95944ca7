package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAsError(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			panic("test panic")
		}

		err := fn()
		var panicErr *PanicError
		require.ErrorAs(t, err, &panicErr)
		assert.Equal(t, "test panic", panicErr.Value)
		assert.NotEmpty(t, panicErr.StackTrace)
	})

	t.Run("no error when no panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			return nil
		}
		assert.NoError(t, fn())
	})
}

func TestRecoverWithCallback(t *testing.T) {
	var got error
	func() {
		defer RecoverWithCallback(func(err error) { got = err })
		panic(errors.New("boom"))
	}()
	assert.ErrorContains(t, got, "boom")
}

func TestWorkerPool(t *testing.T) {
	ctx := context.Background()

	t.Run("results keyed by input index", func(t *testing.T) {
		pool := NewWorkerPool(3, func(ctx context.Context, item string) (int, error) {
			time.Sleep(time.Duration(10-len(item)) * time.Millisecond)
			return len(item), nil
		})
		results, errs := pool.ProcessItems(ctx, []string{"a", "bbbbb", "ccc", "dd"})
		assert.Empty(t, errs)
		assert.Equal(t, map[int]int{0: 1, 1: 5, 2: 3, 3: 2}, results)
	})

	t.Run("errors and panics are reported per item", func(t *testing.T) {
		pool := NewWorkerPool(2, func(ctx context.Context, item int) (int, error) {
			switch item {
			case 1:
				return 0, errors.New("bad item")
			case 2:
				panic("worker crashed")
			}
			return item * 10, nil
		})
		results, errs := pool.ProcessItems(ctx, []int{0, 1, 2, 3})
		assert.Equal(t, map[int]int{0: 0, 3: 30}, results)
		require.Len(t, errs, 2)
		assert.EqualError(t, errs[1], "bad item")
		var panicErr *PanicError
		assert.ErrorAs(t, errs[2], &panicErr)
	})

	t.Run("concurrency is bounded", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		pool := NewWorkerPool(2, func(ctx context.Context, item int) (int, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return item, nil
		})
		results, _ := pool.ProcessItems(ctx, []int{1, 2, 3, 4, 5, 6})
		assert.Len(t, results, 6)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("cancelled context marks remaining items", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		pool := NewWorkerPool(1, func(ctx context.Context, item int) (int, error) { return item, nil })
		results, errs := pool.ProcessItems(cctx, []int{1, 2})
		assert.Empty(t, results)
		assert.ErrorIs(t, errs[0], context.Canceled)
		assert.ErrorIs(t, errs[1], context.Canceled)
	})

	t.Run("on result sees every item", func(t *testing.T) {
		var seen []int
		pool := NewWorkerPool(2, func(ctx context.Context, item int) (int, error) { return item, nil }).
			OnResult(func(index int, _ int, _ error) { seen = append(seen, index) })
		pool.ProcessItems(ctx, []int{5, 6, 7})
		assert.ElementsMatch(t, []int{0, 1, 2}, seen)
	})

	t.Run("empty input", func(t *testing.T) {
		pool := NewWorkerPool(0, func(ctx context.Context, item int) (int, error) { return item, nil })
		results, errs := pool.ProcessItems(ctx, nil)
		assert.Empty(t, results)
		assert.Empty(t, errs)
		assert.Equal(t, DefaultConcurrency, pool.Size())
	})
}

func TestBatch(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Batch([]int{1, 2, 3, 4, 5}, 2))
	assert.Nil(t, Batch([]int{}, 2))
}
