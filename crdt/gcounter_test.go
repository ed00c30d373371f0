package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

func TestGCounterIncrement(t *testing.T) {
	c := crdt.NewGCounter("views")
	op, err := c.CreateOp("increment", crdt.Payload{"amount": int64(3)}, "node1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyOp(op); err != nil {
		t.Fatal(err)
	}
	if v := c.Value().(int64); v != 3 {
		t.Errorf("want 3, got %d", v)
	}
}

func TestGCounterDefaultAmount(t *testing.T) {
	c := crdt.NewGCounter("views")
	op, _ := c.CreateOp("increment", nil, "node1", 1)
	_ = c.ApplyOp(op)
	if v := c.Value().(int64); v != 1 {
		t.Errorf("want 1, got %d", v)
	}
}

func TestGCounterNegativeAmountRejected(t *testing.T) {
	c := crdt.NewGCounter("views")
	op, _ := c.CreateOp("increment", crdt.Payload{"amount": int64(-1)}, "node1", 1)
	if err := c.ApplyOp(op); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestGCounterMergeConverges(t *testing.T) {
	a := crdt.NewGCounter("x")
	b := crdt.NewGCounter("x")

	opA, _ := a.CreateOp("increment", crdt.Payload{"amount": int64(5)}, "a", 1)
	_ = a.ApplyOp(opA)
	opB, _ := b.CreateOp("increment", crdt.Payload{"amount": int64(7)}, "b", 1)
	_ = b.ApplyOp(opB)

	if err := a.Merge(b.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if err := b.Merge(a.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if a.Value() != b.Value() {
		t.Errorf("replicas diverged: %v vs %v", a.Value(), b.Value())
	}
	if v := a.Value().(int64); v != 12 {
		t.Errorf("want 12, got %d", v)
	}
}

func TestGCounterMergeIsIdempotent(t *testing.T) {
	a := crdt.NewGCounter("x")
	op, _ := a.CreateOp("increment", crdt.Payload{"amount": int64(4)}, "a", 1)
	_ = a.ApplyOp(op)

	snap := a.Snapshot()
	_ = a.Merge(snap)
	_ = a.Merge(snap)
	if v := a.Value().(int64); v != 4 {
		t.Errorf("merge should be idempotent, got %d", v)
	}
}

func TestGCounterRoundTrip(t *testing.T) {
	a := crdt.NewGCounter("x")
	op, _ := a.CreateOp("increment", crdt.Payload{"amount": int64(9)}, "a", 1)
	_ = a.ApplyOp(op)

	restored, err := crdt.FromSnapshot(a.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if restored.Value() != a.Value() {
		t.Errorf("round trip mismatch: %v vs %v", restored.Value(), a.Value())
	}
}
