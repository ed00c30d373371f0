package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

func TestLWWMapPutAndRemove(t *testing.T) {
	m := crdt.NewLWWMap("profile")
	put, _ := m.CreateOp("put", crdt.Payload{"key": "name", "value": "ann"}, "a", 1)
	_ = m.ApplyOp(put)

	vals := m.Value().(map[string]any)
	if vals["name"] != "ann" {
		t.Errorf("want name=ann, got %v", vals)
	}

	rem, _ := m.CreateOp("remove", crdt.Payload{"key": "name"}, "a", 2)
	_ = m.ApplyOp(rem)
	if _, present := m.Value().(map[string]any)["name"]; present {
		t.Error("expected key removed")
	}
}

func TestLWWMapConcurrentPutRemoveLaterWins(t *testing.T) {
	a := crdt.NewLWWMap("profile")
	b := crdt.NewLWWMap("profile")

	put, _ := a.CreateOp("put", crdt.Payload{"key": "name", "value": "ann", "timestamp": int64(100)}, "a", 100)
	_ = a.ApplyOp(put)
	rem, _ := b.CreateOp("remove", crdt.Payload{"key": "name", "timestamp": int64(50)}, "b", 50)
	_ = b.ApplyOp(rem)

	_ = a.Merge(b.Snapshot())
	_ = b.Merge(a.Snapshot())

	for _, r := range []*crdt.LWWMap{a, b} {
		if _, present := r.Value().(map[string]any)["name"]; !present {
			t.Error("put at a later timestamp should win over an earlier remove")
		}
	}
}

func TestLWWMapClearRemovesAllPresentKeys(t *testing.T) {
	m := crdt.NewLWWMap("profile")
	put1, _ := m.CreateOp("put", crdt.Payload{"key": "a", "value": 1, "timestamp": int64(1)}, "n", 1)
	put2, _ := m.CreateOp("put", crdt.Payload{"key": "b", "value": 2, "timestamp": int64(1)}, "n", 1)
	_ = m.ApplyOp(put1)
	_ = m.ApplyOp(put2)

	clear, _ := m.CreateOp("clear", crdt.Payload{"timestamp": int64(2)}, "n", 2)
	_ = m.ApplyOp(clear)

	if len(m.Value().(map[string]any)) != 0 {
		t.Errorf("expected map to be empty after clear")
	}
}
