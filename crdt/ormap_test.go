package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

func TestORMapAddUpdateInner(t *testing.T) {
	f := crdt.NewFactory()
	m := crdt.NewORMap("cart", f)

	add, _ := m.CreateOp("add", crdt.Payload{"key": "apples", "crdtType": string(crdt.TypeGCounter), "crdtId": "apples-counter", "tag": "t1"}, "a", 1)
	if err := m.ApplyOp(add); err != nil {
		t.Fatal(err)
	}

	update, _ := m.CreateOp("updateValue", crdt.Payload{
		"key": "apples",
		"valueOperation": map[string]any{
			"operation": "increment",
			"data":      map[string]any{"amount": int64(3)},
		},
	}, "a", 2)
	if err := m.ApplyOp(update); err != nil {
		t.Fatal(err)
	}

	vals := m.Value().(map[string]any)
	if vals["apples"].(int64) != 3 {
		t.Errorf("want 3, got %v", vals["apples"])
	}
}

func TestORMapAddWithoutFactoryFails(t *testing.T) {
	m := crdt.NewORMap("cart", nil)
	add, _ := m.CreateOp("add", crdt.Payload{"key": "apples", "crdtType": string(crdt.TypeGCounter), "crdtId": "apples-counter"}, "a", 1)
	if err := m.ApplyOp(add); err == nil {
		t.Error("expected ErrFactoryMissing without a configured factory")
	}
}

func TestORMapRemoveKeyHidesValue(t *testing.T) {
	f := crdt.NewFactory()
	m := crdt.NewORMap("cart", f)
	add, _ := m.CreateOp("add", crdt.Payload{"key": "apples", "crdtType": string(crdt.TypeGCounter), "crdtId": "apples-counter", "tag": "t1"}, "a", 1)
	_ = m.ApplyOp(add)

	rem, _ := m.CreateOp("remove", crdt.Payload{"key": "apples"}, "a", 2)
	_ = m.ApplyOp(rem)

	if _, present := m.Value().(map[string]any)["apples"]; present {
		t.Error("expected key to be hidden after remove")
	}
}

func TestORMapMergeWithoutFactorySkipsInnerValue(t *testing.T) {
	f := crdt.NewFactory()
	src := crdt.NewORMap("cart", f)
	add, _ := src.CreateOp("add", crdt.Payload{"key": "apples", "crdtType": string(crdt.TypeGCounter), "crdtId": "apples-counter", "tag": "t1"}, "a", 1)
	_ = src.ApplyOp(add)

	dst := crdt.NewORMap("cart", nil)
	if err := dst.Merge(src.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if err := dst.Validate(); err != nil {
		t.Errorf("missing inner factory should not itself violate invariants: %v", err)
	}
}
