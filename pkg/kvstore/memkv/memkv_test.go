package memkv

import (
	"testing"

	"tiersolve.dev/pkg/kvstore"
	"tiersolve.dev/pkg/kvstore/kvtest"
)

func TestMemkvStoreContract(t *testing.T) {
	s := New()
	defer s.Close()
	kvtest.Exercise(t, s)
}

func TestRegisteredUnderMem(t *testing.T) {
	s, err := kvstore.Open("mem", kvstore.Config{})
	if err != nil {
		t.Fatalf("kvstore.Open(mem): %v", err)
	}
	defer s.Close()
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Get("k"); err != nil || v != "v" {
		t.Errorf("Get(k) = %q, %v, want v, nil", v, err)
	}
}
