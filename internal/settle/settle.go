// Package settle runs a group of tasks concurrently and collects every outcome,
// successful or not, in submission order.
package settle

import (
	"context"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Task produces a value or an error.
type Task[T any] func(ctx context.Context) (T, error)

// Outcome is the settled result of one task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// All runs every task concurrently and waits for all of them. A failing or
// panicking task never cancels its siblings; panics are reported as errors.
func All[T any](ctx context.Context, tasks ...Task[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))
	p := pool.New()
	for i, task := range tasks {
		p.Go(func() {
			var catcher panics.Catcher
			catcher.Try(func() {
				v, err := task(ctx)
				outcomes[i] = Outcome[T]{Value: v, Err: err}
			})
			if r := catcher.Recovered(); r != nil {
				outcomes[i] = Outcome[T]{Err: r.AsError()}
			}
		})
	}
	p.Wait()
	return outcomes
}

// Values returns the values of successful outcomes, preserving order.
func Values[T any](outcomes []Outcome[T]) []T {
	out := make([]T, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Value)
		}
	}
	return out
}

// Errors returns the errors of failed outcomes, preserving order.
func Errors[T any](outcomes []Outcome[T]) []error {
	var out []error
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o.Err)
		}
	}
	return out
}
