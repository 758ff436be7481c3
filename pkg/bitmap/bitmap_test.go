package bitmap

import (
	"path/filepath"
	"testing"

	"tiersolve.dev/pkg/record"
)

func TestSetTestClear(t *testing.T) {
	b := New(17) // spans three bytes
	for _, p := range []record.Position{0, 1, 7, 8, 16} {
		if b.Test(p) {
			t.Errorf("Test(%d) = true before any Set", p)
		}
		b.Set(p)
		if !b.Test(p) {
			t.Errorf("Test(%d) = false after Set", p)
		}
	}
	b.Clear(8)
	if b.Test(8) {
		t.Error("Test(8) = true after Clear")
	}
	if !b.Test(7) || !b.Test(16) {
		t.Error("Clear(8) should not disturb neighboring bits")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	b := New(100)
	for _, p := range []record.Position{0, 5, 63, 64, 99} {
		b.Set(p)
	}
	path := filepath.Join(t.TempDir(), "discovery.bits")
	if err := b.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, 100)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", loaded.Len())
	}
	for p := record.Position(0); p < 100; p++ {
		want := p == 0 || p == 5 || p == 63 || p == 64 || p == 99
		if got := loaded.Test(p); got != want {
			t.Errorf("Test(%d) = %v, want %v", p, got, want)
		}
	}
}

func TestLoadRejectsWrongSize(t *testing.T) {
	b := New(8)
	path := filepath.Join(t.TempDir(), "discovery.bits")
	if err := b.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(path, 100); err == nil {
		t.Error("Load should reject a file whose size does not match the requested position count")
	}
}
