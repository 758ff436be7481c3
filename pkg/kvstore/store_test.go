package kvstore

import "testing"

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("no-such-backend", Config{}); err == nil {
		t.Error("Open should fail for an unregistered backend name")
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	Register("store-test-dup", func(Config) (Store, error) { return nil, nil })
	defer delete(ctors, "store-test-dup")

	defer func() {
		if recover() == nil {
			t.Error("Register should panic on duplicate registration")
		}
	}()
	Register("store-test-dup", func(Config) (Store, error) { return nil, nil })
}

func TestRegisterPanicsOnEmptyNameOrNilConstructor(t *testing.T) {
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Register should panic on empty name")
			}
		}()
		Register("", func(Config) (Store, error) { return nil, nil })
	}()
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Register should panic on nil constructor")
			}
		}()
		Register("store-test-nilctor", nil)
	}()
}

func TestBatchAccumulatesOpsInOrder(t *testing.T) {
	b := NewBatch()
	b.Set("a", "1")
	b.Delete("b")
	b.Set("c", "3")

	ops := b.Ops()
	if len(ops) != 3 {
		t.Fatalf("len(ops) = %d, want 3", len(ops))
	}
	if ops[0].Key != "a" || ops[0].Value != "1" || ops[0].Delete {
		t.Errorf("ops[0] = %+v, want Set a=1", ops[0])
	}
	if ops[1].Key != "b" || !ops[1].Delete {
		t.Errorf("ops[1] = %+v, want Delete b", ops[1])
	}
	if ops[2].Key != "c" || ops[2].Value != "3" || ops[2].Delete {
		t.Errorf("ops[2] = %+v, want Set c=3", ops[2])
	}
}
