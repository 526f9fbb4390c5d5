package dispatch

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/oriys/dispatch/internal/cell"
	"github.com/oriys/dispatch/internal/metrics"
)

// Store is a heterogeneous, type-indexed container of resources. Each
// resource lives in its own internal/cell.Guard, which hands out
// borrow-checked shared or exclusive views at fetch time. The Store's own
// mutex protects only the directory (the map from ResourceID to cell) —
// per spec §5, that directory is read-only for the duration of a Dispatch
// call, so ordinary resource access by workers never contends on it.
type Store struct {
	mu    sync.RWMutex
	cells map[ResourceID]*cell.Guard
	sf    singleflight.Group

	// col reports borrow conflicts observed at fetch time. Attached by
	// Dispatcher.Setup; a nil *metrics.Collector is valid and every
	// method on it is a no-op, so a Store used outside a Dispatcher (or
	// before Setup runs) never needs to special-case it.
	col *metrics.Collector
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{cells: make(map[ResourceID]*cell.Guard)}
}

// attachMetrics installs the collector a Dispatcher reports borrow
// conflicts through. Called once from Dispatcher.Setup.
func (s *Store) attachMetrics(c *metrics.Collector) {
	s.mu.Lock()
	s.col = c
	s.mu.Unlock()
}

// Insert places value under variant 0, replacing any existing resource of
// the same type and variant.
func Insert[T any](s *Store, value T) {
	InsertVariant[T](s, value, 0)
}

// InsertVariant places value under the given variant, replacing any
// existing resource of the same type and variant. A resource may also be
// inserted fresh this way — insert is not restricted to "absent" slots,
// unlike GetOrInsert, which only ever installs a default once.
func InsertVariant[T any](s *Store, value T, variant int) {
	id := idFor[T](variant)
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.cells[id]; ok {
		g.Replace(&value)
		return
	}
	s.cells[id] = cell.New(&value)
}

// contains is shared by the exported, variant-specific helpers below.
func contains(s *Store, id ResourceID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cells[id]
	return ok
}

// Contains reports whether a variant-0 resource of type T is present.
func Contains[T any](s *Store) bool {
	return contains(s, idFor[T](0))
}

// ContainsVariant reports whether a resource of type T and the given
// variant is present.
func ContainsVariant[T any](s *Store, variant int) bool {
	return contains(s, idFor[T](variant))
}

// GetOrInsert installs factory's result as the variant-0 resource of type
// T if and only if one is not already present, and returns the resource's
// cell either way. Concurrent callers racing to install the same default
// are coalesced through a singleflight.Group, matching the "setup-time
// defaults" idempotence the spec requires of entry(id).or_insert_with.
func GetOrInsert[T any](s *Store, factory func() T) *cell.Guard {
	return getOrInsertVariant[T](s, 0, factory)
}

// GetOrInsertVariant is GetOrInsert for a specific variant.
func GetOrInsertVariant[T any](s *Store, variant int, factory func() T) *cell.Guard {
	return getOrInsertVariant[T](s, variant, factory)
}

func getOrInsertVariant[T any](s *Store, variant int, factory func() T) *cell.Guard {
	id := idFor[T](variant)

	s.mu.RLock()
	g, ok := s.cells[id]
	s.mu.RUnlock()
	if ok {
		return g
	}

	v, _, _ := s.sf.Do(id.String(), func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if g, ok := s.cells[id]; ok {
			return g, nil
		}
		value := factory()
		g := cell.New(&value)
		s.cells[id] = g
		return g, nil
	})
	return v.(*cell.Guard)
}

// SharedView is a read-oriented borrow of one resource, produced by
// FetchShared. Its lifetime is meant to span exactly one task run: call
// Release as soon as the task is done with it (Bundle.Release is the
// usual place to do that).
type SharedView[T any] struct {
	ptr     *T
	release cell.Release
}

// Get returns the borrowed value. Go has no compile-time borrow checker,
// so nothing stops a caller from mutating through the returned pointer —
// by convention a SharedView is read-only; use FetchExclusive if the task
// declared a write.
func (v SharedView[T]) Get() *T { return v.ptr }

// Release drops the shared borrow. Safe to call on a zero-value
// SharedView (e.g. one left over from a failed Fetch).
func (v SharedView[T]) Release() {
	if v.release != nil {
		v.release()
	}
}

// ExclusiveView is a read-write borrow of one resource, produced by
// FetchExclusive.
type ExclusiveView[T any] struct {
	ptr     *T
	release cell.Release
}

// Get returns the borrowed value for mutation.
func (v ExclusiveView[T]) Get() *T { return v.ptr }

// Release drops the exclusive borrow.
func (v ExclusiveView[T]) Release() {
	if v.release != nil {
		v.release()
	}
}

func fetchShared[T any](s *Store, id ResourceID) (SharedView[T], error) {
	s.mu.RLock()
	g, ok := s.cells[id]
	col := s.col
	s.mu.RUnlock()
	if !ok {
		return SharedView[T]{}, &NotPresentError{ID: id}
	}
	v, release, err := g.BorrowShared()
	if err != nil {
		col.FetchConflict()
		return SharedView[T]{}, &BorrowConflictError{ID: id}
	}
	ptr, ok := v.(*T)
	if !ok {
		panic("dispatch: corrupt downcast for " + id.String())
	}
	return SharedView[T]{ptr: ptr, release: release}, nil
}

func fetchExclusive[T any](s *Store, id ResourceID) (ExclusiveView[T], error) {
	s.mu.RLock()
	g, ok := s.cells[id]
	col := s.col
	s.mu.RUnlock()
	if !ok {
		return ExclusiveView[T]{}, &NotPresentError{ID: id}
	}
	v, release, err := g.BorrowExclusive()
	if err != nil {
		col.FetchConflict()
		return ExclusiveView[T]{}, &BorrowConflictError{ID: id}
	}
	ptr, ok := v.(*T)
	if !ok {
		panic("dispatch: corrupt downcast for " + id.String())
	}
	return ExclusiveView[T]{ptr: ptr, release: release}, nil
}

// FetchShared borrows the variant-0 resource of type T for reading.
func FetchShared[T any](s *Store) (SharedView[T], error) {
	return fetchShared[T](s, idFor[T](0))
}

// FetchSharedVariant borrows a specific variant of type T for reading.
func FetchSharedVariant[T any](s *Store, variant int) (SharedView[T], error) {
	return fetchShared[T](s, idFor[T](variant))
}

// FetchExclusive borrows the variant-0 resource of type T for read-write
// access.
func FetchExclusive[T any](s *Store) (ExclusiveView[T], error) {
	return fetchExclusive[T](s, idFor[T](0))
}

// FetchExclusiveVariant borrows a specific variant of type T for
// read-write access.
func FetchExclusiveVariant[T any](s *Store, variant int) (ExclusiveView[T], error) {
	return fetchExclusive[T](s, idFor[T](variant))
}

// GetMutUnique returns a direct, uncounted pointer to the variant-0
// resource of type T, per spec §4.1: callable only when the caller can
// prove by some external means that the cell is unshared. The dispatcher
// itself never calls it (the thread-local stage fetches bundles through
// the ordinary borrow path); a caller of GetMutUnique is making that
// promise themselves.
func GetMutUnique[T any](s *Store) (*T, error) {
	return GetMutUniqueVariant[T](s, 0)
}

// GetMutUniqueVariant is GetMutUnique for a specific variant.
func GetMutUniqueVariant[T any](s *Store, variant int) (*T, error) {
	id := idFor[T](variant)
	s.mu.RLock()
	g, ok := s.cells[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &NotPresentError{ID: id}
	}
	ptr, ok := g.GetMutUnique().(*T)
	if !ok {
		panic("dispatch: corrupt downcast for " + id.String())
	}
	return ptr, nil
}
