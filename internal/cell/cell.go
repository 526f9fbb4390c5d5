// Package cell implements the runtime borrow-checked storage cell that
// backs every resource in a Store. It replaces what a language with
// compile-time borrow checking would verify statically: since resources
// are addressed dynamically by ResourceID, the check has to happen at
// borrow time instead.
package cell

import (
	"errors"
	"sync/atomic"
)

// ErrConflict is returned when a borrow would violate the cell's state
// machine: a shared borrow while an exclusive one is live, or an exclusive
// borrow while any borrow is live. The cell never blocks — a conflict is
// always a programmer bug (a mis-declared access set let two incompatible
// borrows reach the same cell at once), never contention to wait out.
var ErrConflict = errors.New("cell: borrow conflict")

// Release drops a borrow previously returned by BorrowShared or
// BorrowExclusive. Calling it more than once for the same borrow corrupts
// the counter; callers must treat it like a mutex Unlock.
type Release func()

// Guard is a single mutable cell with an atomic borrow counter layered on
// top of an erased value. The counter has exactly three shapes:
//
//	== 0   idle, no borrows
//	>  0   N active shared borrows
//	== -1  one active exclusive borrow
//
// Guard itself does not know the concrete type of value; Store is
// responsible for downcasting it back to T on every fetch.
type Guard struct {
	state atomic.Int32
	value any
}

// New wraps value in an idle Guard.
func New(value any) *Guard {
	return &Guard{value: value}
}

// BorrowShared acquires one shared borrow. It fails with ErrConflict if an
// exclusive borrow is currently live.
func (g *Guard) BorrowShared() (any, Release, error) {
	for {
		cur := g.state.Load()
		if cur < 0 {
			return nil, nil, ErrConflict
		}
		if g.state.CompareAndSwap(cur, cur+1) {
			return g.value, func() { g.state.Add(-1) }, nil
		}
	}
}

// BorrowExclusive acquires the sole exclusive borrow. It fails with
// ErrConflict if any borrow, shared or exclusive, is currently live.
func (g *Guard) BorrowExclusive() (any, Release, error) {
	if !g.state.CompareAndSwap(0, -1) {
		return nil, nil, ErrConflict
	}
	return g.value, func() { g.state.Store(0) }, nil
}

// GetMutUnique returns the erased value without touching the borrow
// counter. Callers must independently prove the cell is unshared;
// nothing else in this package calls it, and its only caller is
// Store.GetMutUniqueVariant, which leaves that proof to its own callers.
func (g *Guard) GetMutUnique() any {
	return g.value
}

// Replace swaps the erased value without checking or changing the borrow
// counter. It is only safe on a cell that is idle and not reachable by
// concurrent borrowers. Store.InsertVariant calls it under the store's
// directory lock; that lock does not cover borrowers that already hold
// this Guard, and InsertVariant does not check that the cell is idle.
func (g *Guard) Replace(value any) {
	g.value = value
}

// Idle reports whether the cell currently has no live borrows. Exposed
// for tests that assert the borrow-counter law (P6): after any balanced
// fetch-and-release pair the counter returns to 0.
func (g *Guard) Idle() bool {
	return g.state.Load() == 0
}
