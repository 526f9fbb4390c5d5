package dispatch

import (
	"errors"
	"fmt"
)

// Build-time usage errors, surfaced from Builder.Build per spec §7 class 1.
var (
	// ErrUnknownDependency is wrapped with the offending dependency name
	// when With names a dependency that no earlier With call registered.
	ErrUnknownDependency = errors.New("dispatch: unknown dependency")
	// ErrDuplicateName is wrapped with the offending name when two tasks
	// are registered under the same name.
	ErrDuplicateName = errors.New("dispatch: duplicate task name")
	// ErrCyclicPlan is returned defensively by Build if the dependency
	// graph is not acyclic. Registration order makes this unreachable
	// through the public API (a dependency must already be registered
	// before it can be named), but Build still checks it rather than
	// trusting that invariant blindly.
	ErrCyclicPlan = errors.New("dispatch: cyclic task graph")
)

// NotPresentError is returned by Fetch when no resource is stored for an
// ID. It is a runtime invariant violation per spec §7 class 2: the
// scheduler's correctness argument assumes every declared resource exists
// by the time a task fetches it, so seeing this means setup was
// incomplete, not that the caller should retry.
type NotPresentError struct {
	ID ResourceID
}

func (e *NotPresentError) Error() string {
	return fmt.Sprintf("dispatch: resource %s not present", e.ID)
}

// BorrowConflictError is returned by Fetch when the declared access sets
// let two incompatible borrows reach the same cell. Like NotPresentError,
// this is always a programmer bug — a mis-declared Reads/Writes — never
// transient contention; the scheduler never lets it happen in steady
// state.
type BorrowConflictError struct {
	ID ResourceID
}

func (e *BorrowConflictError) Error() string {
	return fmt.Sprintf("dispatch: borrow conflict on resource %s", e.ID)
}

// PanicError wraps a task's run panicking. Dispatch recovers the panic on
// the worker goroutine, records it here, and keeps draining the rest of
// the in-flight work before surfacing a composite error built with
// errors.Join over every PanicError and ordinary task error observed
// during that Dispatch call.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dispatch: task %q panicked: %v", e.Task, e.Value)
}

// TaskError wraps an ordinary (non-panic) error returned by a task's
// bundle Fetch. Run has no error result, and Setup errors are returned
// from Dispatcher.Setup unwrapped.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("dispatch: task %q failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// containsPanic reports whether err — possibly an errors.Join tree — has
// a *PanicError anywhere in it. errors.As already walks Unwrap() []error
// trees as of Go 1.20, so a single call covers every task error in one
// composite Dispatch failure.
func containsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
