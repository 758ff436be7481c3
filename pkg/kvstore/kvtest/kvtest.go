// Package kvtest is a small, reusable Store-contract test suite shared by
// every kvstore backend, grounded on the teacher's pkg/sorted/kvtest
// package (a single TestSorted(t, kv) run against every sorted.KeyValue
// implementation instead of duplicating the same assertions per backend).
package kvtest

import (
	"testing"

	"tiersolve.dev/pkg/kvstore"
)

// Exercise runs the Store contract against s. Callers own s's lifecycle
// (Exercise does not Close it).
func Exercise(t *testing.T, s kvstore.Store) {
	t.Helper()

	if _, err := s.Get("missing"); err != kvstore.ErrNotFound {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Set("a", "1"); err != nil {
		t.Fatalf("Set(a): %v", err)
	}
	if err := s.Set("b", "2"); err != nil {
		t.Fatalf("Set(b): %v", err)
	}
	if v, err := s.Get("a"); err != nil || v != "1" {
		t.Errorf("Get(a) = %q, %v, want 1, nil", v, err)
	}

	if err := s.Set("a", "1-updated"); err != nil {
		t.Fatalf("Set(a) overwrite: %v", err)
	}
	if v, err := s.Get("a"); err != nil || v != "1-updated" {
		t.Errorf("Get(a) after overwrite = %q, %v, want 1-updated, nil", v, err)
	}

	if err := s.Delete("b"); err != nil {
		t.Fatalf("Delete(b): %v", err)
	}
	if _, err := s.Get("b"); err != kvstore.ErrNotFound {
		t.Errorf("Get(b) after Delete error = %v, want ErrNotFound", err)
	}

	batch := s.BeginBatch()
	batch.Set("c", "3")
	batch.Set("d", "4")
	batch.Delete("a")
	if err := s.CommitBatch(batch); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if _, err := s.Get("a"); err != kvstore.ErrNotFound {
		t.Errorf("Get(a) after batch delete error = %v, want ErrNotFound", err)
	}
	if v, err := s.Get("c"); err != nil || v != "3" {
		t.Errorf("Get(c) after batch = %q, %v, want 3, nil", v, err)
	}

	want := map[string]string{"c": "3", "d": "4"}
	got := map[string]string{}
	it := s.Find("")
	for it.Next() {
		got[it.Key()] = it.Value()
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Iterator.Close: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Find(\"\") returned %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Find(\"\")[%q] = %q, want %q", k, got[k], v)
		}
	}

	it2 := s.Find("d")
	if !it2.Next() {
		t.Fatal("Find(d) should yield at least one entry")
	}
	if it2.Key() != "d" || it2.Value() != "4" {
		t.Errorf("Find(d) first entry = %q=%q, want d=4", it2.Key(), it2.Value())
	}
	if it2.Next() {
		t.Errorf("Find(d) should yield exactly one entry, got extra %q", it2.Key())
	}
	_ = it2.Close()
}
