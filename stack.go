package dispatch

import "runtime/debug"

// capturedStack returns the current goroutine's stack trace, captured at
// the point a task's Run is recovered from a panic.
func capturedStack() []byte {
	return debug.Stack()
}
