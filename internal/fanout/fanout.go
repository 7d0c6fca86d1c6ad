// Package fanout runs independent operations over a list of targets with a
// cap on how many are in flight at once.
package fanout

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultLimit is the in-flight cap used when a non-positive limit is given.
const DefaultLimit = 5

// Outcome is the result of one target. Exactly one of Value or Err is meaningful.
type Outcome[R any] struct {
	Value R
	Err   error
}

// OK reports whether the target succeeded.
func (o Outcome[R]) OK() bool { return o.Err == nil }

// Map applies fn to every item with at most limit calls running concurrently.
// The returned slice has one Outcome per item, in input order. A failing or
// panicking target never affects the others. Once ctx is done no further
// targets are admitted; those get ctx.Err() in their slot.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Outcome[R] {
	out := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return out
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	sem := semaphore.NewWeighted(int64(limit))
	var g errgroup.Group

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(items); j++ {
				out[j].Err = err
			}
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			out[i] = run(ctx, item, fn)
			return nil
		})
	}

	_ = g.Wait()
	return out
}

func run[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (o Outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			o = Outcome[R]{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Outcome[R]{Err: err}
	}
	v, err := fn(ctx, item)
	if err != nil {
		return Outcome[R]{Err: err}
	}
	return Outcome[R]{Value: v}
}

// Values collects the successful values, in input order.
func Values[R any](outcomes []Outcome[R]) []R {
	vals := make([]R, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			vals = append(vals, o.Value)
		}
	}
	return vals
}
