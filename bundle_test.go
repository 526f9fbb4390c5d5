package dispatch

import "context"

// taskFunc adapts a plain function to Task[B], the way callers in this
// corpus wrap a closure behind a one-method interface instead of
// declaring a throwaway named type per task.
type taskFunc[B any] func(ctx context.Context, b *B)

func (f taskFunc[B]) Run(ctx context.Context, b *B) { f(ctx, b) }

// Value is the shared fixture resource used across the package's tests.
type Value struct {
	N int
}

// ReadBundle borrows Value shared.
type ReadBundle struct {
	v SharedView[Value]
}

func (b *ReadBundle) Reads() []ResourceID  { return []ResourceID{idFor[Value](0)} }
func (b *ReadBundle) Writes() []ResourceID { return nil }
func (b *ReadBundle) Setup(s *Store) error {
	GetOrInsert(s, func() Value { return Value{} })
	return nil
}
func (b *ReadBundle) Fetch(s *Store) error {
	v, err := FetchShared[Value](s)
	if err != nil {
		return err
	}
	b.v = v
	return nil
}
func (b *ReadBundle) Release() { b.v.Release() }

// WriteBundle borrows Value exclusively.
type WriteBundle struct {
	v ExclusiveView[Value]
}

func (b *WriteBundle) Reads() []ResourceID  { return nil }
func (b *WriteBundle) Writes() []ResourceID { return []ResourceID{idFor[Value](0)} }
func (b *WriteBundle) Setup(s *Store) error {
	GetOrInsert(s, func() Value { return Value{} })
	return nil
}
func (b *WriteBundle) Fetch(s *Store) error {
	v, err := FetchExclusive[Value](s)
	if err != nil {
		return err
	}
	b.v = v
	return nil
}
func (b *WriteBundle) Release() { b.v.Release() }

// EmptyBundle declares no access at all, for tasks that only need to run
// without touching the store (e.g. a pure side-effecting step chained by
// dependency alone).
type EmptyBundle struct{}

func (b *EmptyBundle) Reads() []ResourceID   { return nil }
func (b *EmptyBundle) Writes() []ResourceID  { return nil }
func (b *EmptyBundle) Setup(s *Store) error  { return nil }
func (b *EmptyBundle) Fetch(s *Store) error  { return nil }
func (b *EmptyBundle) Release()              {}

// OverlapBundle violates the composition law on purpose, for
// Builder.Build's disjointness check.
type OverlapBundle struct {
	r SharedView[Value]
	w ExclusiveView[Value]
}

func (b *OverlapBundle) Reads() []ResourceID  { return []ResourceID{idFor[Value](0)} }
func (b *OverlapBundle) Writes() []ResourceID { return []ResourceID{idFor[Value](0)} }
func (b *OverlapBundle) Setup(s *Store) error { return nil }
func (b *OverlapBundle) Fetch(s *Store) error { return nil }
func (b *OverlapBundle) Release()             {}
