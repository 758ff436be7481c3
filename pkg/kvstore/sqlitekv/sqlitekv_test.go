package sqlitekv

import (
	"path/filepath"
	"testing"

	"tiersolve.dev/pkg/kvstore/kvtest"
)

func TestSqlitekvStoreContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	kvtest.Exercise(t, s)
}

func TestSqlitekvProvisionsSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open (create): %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open (reopen, schema already present): %v", err)
	}
	defer reopened.Close()
	if v, err := reopened.Get("k"); err != nil || v != "v" {
		t.Errorf("Get(k) after reopen = %q, %v, want v, nil", v, err)
	}
}
