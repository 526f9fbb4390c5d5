package dispatch

import (
	"sync"
	"testing"
)

type Counter struct {
	N int
}

func TestStore_InsertAndFetchShared(t *testing.T) {
	s := NewStore()
	Insert(s, Counter{N: 7})

	v, err := FetchShared[Counter](s)
	if err != nil {
		t.Fatalf("FetchShared: %v", err)
	}
	defer v.Release()

	if v.Get().N != 7 {
		t.Fatalf("expected N=7, got %d", v.Get().N)
	}
}

func TestStore_FetchSharedNotPresent(t *testing.T) {
	s := NewStore()
	if _, err := FetchShared[Counter](s); err == nil {
		t.Fatalf("expected NotPresentError, got nil")
	} else if _, ok := err.(*NotPresentError); !ok {
		t.Fatalf("expected *NotPresentError, got %T: %v", err, err)
	}
}

func TestStore_VariantsAreIndependent(t *testing.T) {
	s := NewStore()
	InsertVariant(s, Counter{N: 1}, 0)
	InsertVariant(s, Counter{N: 2}, 1)

	v0, err := FetchSharedVariant[Counter](s, 0)
	if err != nil {
		t.Fatalf("FetchSharedVariant(0): %v", err)
	}
	defer v0.Release()
	v1, err := FetchSharedVariant[Counter](s, 1)
	if err != nil {
		t.Fatalf("FetchSharedVariant(1): %v", err)
	}
	defer v1.Release()

	if v0.Get().N != 1 || v1.Get().N != 2 {
		t.Fatalf("expected variants to stay independent, got %d and %d", v0.Get().N, v1.Get().N)
	}
}

func TestStore_ExclusiveExcludesShared(t *testing.T) {
	s := NewStore()
	Insert(s, Counter{N: 0})

	ex, err := FetchExclusive[Counter](s)
	if err != nil {
		t.Fatalf("FetchExclusive: %v", err)
	}
	ex.Get().N++

	if _, err := FetchShared[Counter](s); err == nil {
		t.Fatalf("expected BorrowConflictError for shared fetch under live exclusive borrow")
	} else if _, ok := err.(*BorrowConflictError); !ok {
		t.Fatalf("expected *BorrowConflictError, got %T: %v", err, err)
	}

	ex.Release()

	v, err := FetchShared[Counter](s)
	if err != nil {
		t.Fatalf("FetchShared after release: %v", err)
	}
	defer v.Release()
	if v.Get().N != 1 {
		t.Fatalf("expected mutation through exclusive view to persist, got %d", v.Get().N)
	}
}

func TestStore_GetOrInsertInstallsOnlyOnce(t *testing.T) {
	s := NewStore()
	var calls int32
	var mu sync.Mutex

	factory := func() Counter {
		mu.Lock()
		calls++
		mu.Unlock()
		return Counter{N: 99}
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			GetOrInsert(s, factory)
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected factory called exactly once, got %d", calls)
	}

	v, err := FetchShared[Counter](s)
	if err != nil {
		t.Fatalf("FetchShared: %v", err)
	}
	defer v.Release()
	if v.Get().N != 99 {
		t.Fatalf("expected installed value N=99, got %d", v.Get().N)
	}
}

func TestStore_GetMutUnique(t *testing.T) {
	s := NewStore()
	Insert(s, Counter{N: 5})

	p, err := GetMutUnique[Counter](s)
	if err != nil {
		t.Fatalf("GetMutUnique: %v", err)
	}
	p.N = 42

	v, err := FetchShared[Counter](s)
	if err != nil {
		t.Fatalf("FetchShared: %v", err)
	}
	defer v.Release()
	if v.Get().N != 42 {
		t.Fatalf("expected GetMutUnique mutation to be visible, got %d", v.Get().N)
	}
}

func TestStore_Contains(t *testing.T) {
	s := NewStore()
	if Contains[Counter](s) {
		t.Fatalf("expected Contains to be false before insert")
	}
	Insert(s, Counter{N: 1})
	if !Contains[Counter](s) {
		t.Fatalf("expected Contains to be true after insert")
	}
	if ContainsVariant[Counter](s, 3) {
		t.Fatalf("expected ContainsVariant(3) to be false, nothing inserted there")
	}
}
