// Package fanout implements helpers that dispatch N concurrent shard
// calls, await them as they complete, apply per-result side effects,
// honour a continue/short-circuit predicate, classify exceptions, and
// cancel an outstanding interval metric on failure.
//
// Health-check fan-out elsewhere in this codebase gets by with a bare
// sync.WaitGroup and a mutex-guarded slice, with no short-circuit, no
// exception classification, and no metric cancellation. This package
// generalizes that wg+mutex shape into a richer contract, built on top
// of golang.org/x/sync/errgroup for bounded concurrent dispatch,
// combined with a completion-order channel since errgroup alone has no
// notion of ordered, classifiable results.
package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// IntervalMetric is the minimal surface fanout needs from a begun
// interval metric: the ability to cancel it on an unclassified or
// rethrown failure. internal/metrics.IntervalMetric satisfies this
// structurally; fanout does not import internal/metrics so that the two
// packages can be tested independently.
type IntervalMetric interface {
	Cancel()
}

// Task is one unit of fan-out work: a shard call plus the stable
// description of the shard it targets. ID is a fresh UUID generated at
// construction time so that two void-returning completed operations
// never collapse into a shared sentinel and break set membership or map
// keys keyed by task identity. Every task, void or not, is tagged with
// its own unique token and all bookkeeping keys off that token rather
// than off the task value itself, so the same code stays correct if the
// execution model ever changes.
type Task[T any] struct {
	ID          string
	Description string
	Run         func(ctx context.Context) (T, error)
}

// NewTask builds a Task with a fresh identity.
func NewTask[T any](description string, run func(ctx context.Context) (T, error)) Task[T] {
	return Task[T]{ID: uuid.NewString(), Description: description, Run: run}
}

// Void is the payload type used for tasks whose underlying shard call
// returns no value (e.g. AddUser). Callers of AwaitTaskCompletion for
// void operations pass an OnResult that ignores the value; only the
// unique ID distinguishes one completed void task from another.
type Void struct{ token string }

// NewVoidTask wraps an error-only shard call as a Task[Void], generating
// the per-task unique token every task needs regardless of payload.
func NewVoidTask(description string, run func(ctx context.Context) error) Task[Void] {
	return NewTask(description, func(ctx context.Context) (Void, error) {
		if err := run(ctx); err != nil {
			return Void{}, err
		}
		return Void{token: uuid.NewString()}, nil
	})
}

// Options configures one AwaitTaskCompletion call.
type Options[T any] struct {
	// OnResult is invoked at most once per successful task, in
	// completion order, never concurrently with itself — callers need
	// no synchronization to accumulate into a local collection.
	OnResult func(T)

	// ContinuePredicate is invoked after OnResult for each successful
	// result. Returning false aborts the wait early: remaining tasks are
	// canceled and their outcomes discarded. A nil predicate always
	// continues.
	ContinuePredicate func(T) bool

	// IgnoreError reports whether an error should be treated as an
	// empty, successful no-op contribution (e.g. entity-not-found while
	// walking reverse mappings). OnResult is NOT called for an ignored
	// task.
	IgnoreError func(error) bool

	// RethrowError reports whether an error should propagate to the
	// caller verbatim, without being wrapped in a ShardCallError.
	RethrowError func(error) bool

	// ExceptionEventDescription names the action being performed, used
	// to build the wrapped-error message:
	// "Failed to {description} shard with configuration '{shardDesc}'."
	ExceptionEventDescription string

	// Interval, if set, is canceled on the first unclassified or
	// rethrown failure: a failing fan-out cancels its interval metric
	// exactly once and never ends it.
	Interval IntervalMetric

	// Concurrency bounds the number of tasks dispatched at once. Zero
	// means unbounded (errgroup.SetLimit is not called).
	Concurrency int
}

// ShardCallError wraps an unclassified shard-call failure with the shard
// description and the action being performed.
type ShardCallError struct {
	Description string
	Action      string
	Err         error
}

func (e *ShardCallError) Error() string {
	return fmt.Sprintf("Failed to %s shard with configuration '%s'.", e.Action, e.Description)
}

func (e *ShardCallError) Unwrap() error { return e.Err }

type outcome[T any] struct {
	description string
	value       T
	err         error
}

// AwaitTaskCompletion runs tasks concurrently, feeds results to a single
// consumer in completion order, and applies opts. It returns nil once
// every task has been accounted for (all
// succeeded, or enough were ignored/completed to exhaust the set without
// the predicate stopping early), the wrapped or rethrown error from the
// first unclassified/rethrown failure, or ctx.Err() if the caller's
// context is canceled first.
func AwaitTaskCompletion[T any](ctx context.Context, tasks []Task[T], opts Options[T]) error {
	if len(tasks) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel() // orphans any still-running tasks when we return early

	results := make(chan outcome[T], len(tasks))

	g, gCtx := errgroup.WithContext(runCtx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			value, err := task.Run(gCtx)
			select {
			case results <- outcome[T]{description: task.Description, value: value, err: err}:
			case <-runCtx.Done():
			}
			return nil // errors are reported via the results channel, not errgroup's own error
		})
	}
	go func() { _ = g.Wait() }()

	received := 0
	for received < len(tasks) {
		select {
		case <-ctx.Done():
			if opts.Interval != nil {
				opts.Interval.Cancel()
			}
			return ctx.Err()

		case res := <-results:
			received++

			if res.err != nil {
				if opts.IgnoreError != nil && opts.IgnoreError(res.err) {
					continue
				}
				if opts.Interval != nil {
					opts.Interval.Cancel()
				}
				if opts.RethrowError != nil && opts.RethrowError(res.err) {
					return res.err
				}
				return &ShardCallError{
					Description: res.description,
					Action:      opts.ExceptionEventDescription,
					Err:         res.err,
				}
			}

			if opts.OnResult != nil {
				opts.OnResult(res.value)
			}
			if opts.ContinuePredicate != nil && !opts.ContinuePredicate(res.value) {
				return nil
			}
		}
	}

	return nil
}

// IgnoreNone never classifies an error as ignorable. Convenience for
// Options.IgnoreError when an operation has no ignore set.
func IgnoreNone(error) bool { return false }

// RethrowNone never classifies an error as rethrow-verbatim. Convenience
// for Options.RethrowError when an operation has no rethrow set.
func RethrowNone(error) bool { return false }

// MatchAny builds an IgnoreError/RethrowError predicate that reports true
// when err, or anything it wraps, matches one of targets via errors.Is.
func MatchAny(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}
