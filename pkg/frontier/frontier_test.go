package frontier

import (
	"sync"
	"testing"

	"tiersolve.dev/pkg/record"
)

func TestAddAndGet(t *testing.T) {
	f := New(10, 2)
	if err := f.Add(5, 3, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.Add(6, 3, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := f.Len(3); got != 2 {
		t.Fatalf("Len(3) = %d, want 2", got)
	}
	if e := f.Get(3, 0); e.Position != 5 || e.Source != 0 {
		t.Errorf("Get(3,0) = %+v, want {5 0}", e)
	}
}

func TestAddRejectsOverCapacity(t *testing.T) {
	f := New(4, 1)
	err := f.Add(0, 5, 0)
	if err == nil {
		t.Fatal("Add at remoteness beyond max should fail")
	}
	if ce, ok := err.(*ErrCapacity); !ok || ce.Max != 4 || ce.Remoteness != 5 {
		t.Errorf("Add error = %#v, want *ErrCapacity{Remoteness:5,Max:4}", err)
	}
}

func TestAddAfterAccumulateDividersFailsForNonSelfSource(t *testing.T) {
	f := New(4, 2) // sources 0 and self(1)
	f.AccumulateDividers()
	if err := f.Add(0, 1, 0); err == nil {
		t.Error("a non-self-source Add after AccumulateDividers should return an error")
	}
}

func TestAddAfterAccumulateDividersSucceedsForSelfSource(t *testing.T) {
	f := New(4, 2) // sources 0 and self(1)
	f.AccumulateDividers()
	if err := f.Add(0, 1, f.SelfSource()); err != nil {
		t.Errorf("a self-source Add after AccumulateDividers should succeed (Phase 2 propagation), got %v", err)
	}
	if got := f.Len(1); got != 1 {
		t.Errorf("Len(1) = %d, want 1", got)
	}
}

func TestAccumulateDividersPrefixSums(t *testing.T) {
	f := New(1, 3) // sources 0, 1, and self(2)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(f.Add(0, 0, 0))
	must(f.Add(1, 0, 0))
	must(f.Add(2, 0, 1))
	must(f.Add(3, 0, 2))
	f.AccumulateDividers()

	div := f.Dividers(0)
	// counts were [2,1,1]; prefix sums should be [0,2,3,4]
	want := []int{0, 2, 3, 4}
	if len(div) != len(want) {
		t.Fatalf("Dividers(0) = %v, want length %d", div, len(want))
	}
	for i, w := range want {
		if div[i] != w {
			t.Errorf("Dividers(0)[%d] = %d, want %d", i, div[i], w)
		}
	}
}

func TestSelfSourceIsLastSlot(t *testing.T) {
	f := New(1, 4)
	if f.SelfSource() != SourceIndex(3) {
		t.Errorf("SelfSource() = %d, want 3", f.SelfSource())
	}
}

func TestFreeClearsBucket(t *testing.T) {
	f := New(2, 1)
	if err := f.Add(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	f.Free(1)
	if got := f.Len(1); got != 0 {
		t.Errorf("Len(1) after Free = %d, want 0", got)
	}
}

func TestAddIsConcurrencySafePerBucket(t *testing.T) {
	f := New(0, 1)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := f.Add(record.Position(i), 0, 0); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	if got := f.Len(0); got != 200 {
		t.Errorf("Len(0) = %d, want 200", got)
	}
}
