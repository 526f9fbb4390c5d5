package dispatch

import "context"

// Task is one user-supplied unit of work, parameterized by its Bundle
// type B. A given task instance is entered by at most one worker at a
// time per Dispatch call, and holds no borrows between dispatches — Run
// only ever sees the borrows its own bundle acquired for this one call.
type Task[B any] interface {
	// Run executes the task against bundle, which has already had Setup
	// and Fetch called on it for this dispatch. ctx is cancelled if an
	// earlier task in the same Dispatch call fails; cooperative tasks may
	// check ctx.Err() to stop early, but Run is free to ignore it and run
	// to completion — the scheduler never forcibly interrupts a task.
	Run(ctx context.Context, bundle *B)
}

// runnable is the type-erased form every registered task is reduced to,
// so the builder and scheduler can hold a single slice of heterogeneous
// tasks despite Go generics not supporting heterogeneous generic
// collections directly.
type runnable interface {
	// name returns the task's registered name, for logs, metrics, and
	// error messages.
	name() string
	// accessSet computes the task's AccessSet from a zero-value bundle.
	// Safe to call any number of times; must not touch store.
	accessSet() AccessSet
	// setup calls the bundle's Setup against store. Called once per task
	// by Dispatcher.Setup, before the first Dispatch/DispatchSeq.
	setup(store *Store) error
	// run constructs a fresh bundle, Fetches it against store, invokes
	// the task, and Releases the bundle, recovering any panic into a
	// *PanicError. The returned error is never wrapped further by run
	// itself — the scheduler decides how to label/aggregate it.
	run(ctx context.Context, store *Store) error
}

type taskNode[B any, PB BundlePtr[B]] struct {
	nm   string
	task Task[B]
}

func (n *taskNode[B, PB]) name() string { return n.nm }

func (n *taskNode[B, PB]) accessSet() AccessSet {
	var zero B
	pb := PB(&zero)
	return AccessSet{Reads: pb.Reads(), Writes: pb.Writes()}
}

func (n *taskNode[B, PB]) setup(store *Store) error {
	var zero B
	pb := PB(&zero)
	return pb.Setup(store)
}

func (n *taskNode[B, PB]) run(ctx context.Context, store *Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: n.nm, Value: r, Stack: capturedStack()}
		}
	}()

	var bundle B
	pb := PB(&bundle)

	if err := pb.Fetch(store); err != nil {
		return &TaskError{Task: n.nm, Err: err}
	}
	defer pb.Release()

	n.task.Run(ctx, &bundle)
	return nil
}
