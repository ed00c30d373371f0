package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

// TestLWWRegisterTieBreaksOnReplica covers the concrete scenario: a
// sets "first" at ts=1000, b sets "second" at ts=1000. Both replicas
// must converge to "second" since "b" > "a" lexicographically.
func TestLWWRegisterTieBreaksOnReplica(t *testing.T) {
	a := crdt.NewLWWRegister("title")
	b := crdt.NewLWWRegister("title")

	opA, _ := a.CreateOp("set", crdt.Payload{"value": "first", "timestamp": int64(1000)}, "a", 1000)
	_ = a.ApplyOp(opA)
	opB, _ := b.CreateOp("set", crdt.Payload{"value": "second", "timestamp": int64(1000)}, "b", 1000)
	_ = b.ApplyOp(opB)

	_ = a.Merge(b.Snapshot())
	_ = b.Merge(a.Snapshot())

	if a.Value() != "second" || b.Value() != "second" {
		t.Errorf("want both replicas at \"second\", got a=%v b=%v", a.Value(), b.Value())
	}
}

func TestLWWRegisterLaterTimestampWins(t *testing.T) {
	r := crdt.NewLWWRegister("title")
	old, _ := r.CreateOp("set", crdt.Payload{"value": "old", "timestamp": int64(100)}, "a", 100)
	new, _ := r.CreateOp("set", crdt.Payload{"value": "new", "timestamp": int64(200)}, "b", 200)
	_ = r.ApplyOp(new)
	_ = r.ApplyOp(old)

	if r.Value() != "new" {
		t.Errorf("want \"new\", got %v", r.Value())
	}
}
