package cell

import (
	"sync"
	"testing"
)

func TestGuard_SharedBorrowsCoexist(t *testing.T) {
	g := New(42)

	_, rel1, err := g.BorrowShared()
	if err != nil {
		t.Fatalf("first shared borrow: %v", err)
	}
	_, rel2, err := g.BorrowShared()
	if err != nil {
		t.Fatalf("second shared borrow: %v", err)
	}

	rel1()
	rel2()

	if !g.Idle() {
		t.Fatalf("expected guard idle after releasing both shared borrows")
	}
}

func TestGuard_ExclusiveExcludesShared(t *testing.T) {
	g := New(42)

	_, relEx, err := g.BorrowExclusive()
	if err != nil {
		t.Fatalf("exclusive borrow: %v", err)
	}

	if _, _, err := g.BorrowShared(); err != ErrConflict {
		t.Fatalf("expected ErrConflict for shared borrow under exclusive, got %v", err)
	}
	if _, _, err := g.BorrowExclusive(); err != ErrConflict {
		t.Fatalf("expected ErrConflict for second exclusive borrow, got %v", err)
	}

	relEx()

	if !g.Idle() {
		t.Fatalf("expected guard idle after releasing exclusive borrow")
	}
}

func TestGuard_SharedExcludesExclusive(t *testing.T) {
	g := New(42)

	_, rel, err := g.BorrowShared()
	if err != nil {
		t.Fatalf("shared borrow: %v", err)
	}

	if _, _, err := g.BorrowExclusive(); err != ErrConflict {
		t.Fatalf("expected ErrConflict for exclusive borrow under shared, got %v", err)
	}

	rel()
}

func TestGuard_BalancedBorrowsReturnToIdle(t *testing.T) {
	g := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, rel, err := g.BorrowShared()
			if err != nil {
				return
			}
			rel()
		}()
	}
	wg.Wait()

	if !g.Idle() {
		t.Fatalf("expected guard idle after balanced concurrent shared borrows")
	}
}

func TestGuard_GetMutUnique(t *testing.T) {
	g := New("hello")
	if v := g.GetMutUnique(); v != "hello" {
		t.Fatalf("expected %q, got %v", "hello", v)
	}
}
