// Package stream has small generic channel stages and the NDJSON record
// reader and writer.
//
// Each stage runs in its own goroutine and closes its output when its input
// is exhausted or ctx is done. Stages are chained inside-out:
//
//	Collect(ctx, Filter(ctx, keep, Slice(ctx, records)))
package stream

import (
	"context"
)

// forward sends v on out unless ctx is done first.
func forward[T any](ctx context.Context, out chan T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- v:
		return true
	}
}

func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, v := range in {
			if !forward(ctx, out, v) {
				return
			}
		}
	}()
	return out
}

func Filter[T any](ctx context.Context, keep func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for v := range in {
			if keep(v) && !forward(ctx, out, v) {
				return
			}
		}
	}()
	return out
}

func Transform[I any, O any](ctx context.Context, fn func(I) O, in <-chan I) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		for v := range in {
			if !forward(ctx, out, fn(v)) {
				return
			}
		}
	}()
	return out
}

// Collect drains in. On cancellation it keeps draining, without collecting,
// so upstream goroutines can exit.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	var out []T
	for v := range in {
		if ctx.Err() == nil {
			out = append(out, v)
		}
	}
	return out
}
