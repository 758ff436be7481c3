package leveldbkv

import (
	"path/filepath"
	"testing"

	"tiersolve.dev/pkg/kvstore/kvtest"
)

func TestLeveldbkvStoreContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.leveldb")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	kvtest.Exercise(t, s)
}
