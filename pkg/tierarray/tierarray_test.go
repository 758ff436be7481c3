package tierarray

import (
	"sync"
	"testing"

	"tiersolve.dev/pkg/record"
)

func TestNewArrayStartsUndecided(t *testing.T) {
	a := New(8)
	if got, want := a.Len(), record.Position(8); got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	for p := record.Position(0); p < a.Len(); p++ {
		if got := a.Get(p).Value(); got != record.Undecided {
			t.Errorf("Get(%d).Value() = %v, want Undecided", p, got)
		}
		if got := a.Counter(p); got != 0 {
			t.Errorf("Counter(%d) = %d, want 0", p, got)
		}
		if a.TieSeen(p) {
			t.Errorf("TieSeen(%d) = true, want false", p)
		}
	}
}

func TestSetBypassesDominance(t *testing.T) {
	a := New(1)
	a.Set(0, record.NewRecord(record.Win, 3))
	a.Set(0, record.NewRecord(record.Lose, 9)) // a weaker record still overwrites via Set
	if got := a.Get(0); got.Value() != record.Lose || got.Remoteness() != 9 {
		t.Errorf("Get(0) = %v, want lose(9)", got)
	}
}

func TestCompareUpdateOnlyWinsOnDominance(t *testing.T) {
	a := New(1)
	if ok := a.CompareUpdate(0, record.NewRecord(record.Win, 5)); !ok {
		t.Fatal("first write over Undecided should win")
	}
	if ok := a.CompareUpdate(0, record.NewRecord(record.Win, 9)); ok {
		t.Error("a slower win should not overwrite a quicker one")
	}
	if ok := a.CompareUpdate(0, record.NewRecord(record.Win, 2)); !ok {
		t.Error("a quicker win should dominate and overwrite")
	}
	if got := a.Get(0); got.Value() != record.Win || got.Remoteness() != 2 {
		t.Errorf("Get(0) = %v, want win(2)", got)
	}
}

func TestCompareUpdateConcurrentWritersKeepBestWin(t *testing.T) {
	a := New(1)
	var wg sync.WaitGroup
	for r := record.Remoteness(1); r <= 100; r++ {
		wg.Add(1)
		go func(r record.Remoteness) {
			defer wg.Done()
			a.CompareUpdate(0, record.NewRecord(record.Win, r))
		}(r)
	}
	wg.Wait()
	if got := a.Get(0); got.Value() != record.Win || got.Remoteness() != 1 {
		t.Errorf("Get(0) = %v, want win(1) (the quickest win among all writers)", got)
	}
}

func TestCounterDecrementAndTieSeen(t *testing.T) {
	a := New(1)
	a.InitCounter(0, 3)
	if got := a.DecrementCounter(0); got != 2 {
		t.Errorf("DecrementCounter = %d, want 2", got)
	}
	a.MarkTieSeen(0)
	if !a.TieSeen(0) {
		t.Error("TieSeen should report true after MarkTieSeen")
	}
	a.DecrementCounter(0)
	if got := a.DecrementCounter(0); got != 0 {
		t.Errorf("DecrementCounter = %d, want 0", got)
	}
}

func TestRecordsSnapshot(t *testing.T) {
	a := New(3)
	a.Set(0, record.NewRecord(record.Win, 1))
	a.Set(1, record.NewRecord(record.Lose, 2))
	recs := a.Records()
	if len(recs) != 3 {
		t.Fatalf("len(Records()) = %d, want 3", len(recs))
	}
	if recs[0].Value() != record.Win || recs[1].Value() != record.Lose || recs[2].Value() != record.Undecided {
		t.Errorf("Records() = %v, want [win, lose, undecided]", recs)
	}
}
