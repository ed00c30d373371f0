package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

func TestPNCounterIncrementDecrement(t *testing.T) {
	c := crdt.NewPNCounter("votes")
	inc, _ := c.CreateOp("increment", crdt.Payload{"amount": int64(10)}, "node1", 1)
	dec, _ := c.CreateOp("decrement", crdt.Payload{"amount": int64(3)}, "node1", 2)
	_ = c.ApplyOp(inc)
	_ = c.ApplyOp(dec)

	if v := c.Value().(int64); v != 7 {
		t.Errorf("want 7, got %d", v)
	}
}

func TestPNCounterZeroOrNegativeAmountRejected(t *testing.T) {
	c := crdt.NewPNCounter("votes")
	op, _ := c.CreateOp("increment", crdt.Payload{"amount": int64(0)}, "node1", 1)
	if err := c.ApplyOp(op); err == nil {
		t.Error("expected error for zero amount")
	}
	neg, _ := c.CreateOp("decrement", crdt.Payload{"amount": int64(-2)}, "node1", 2)
	if err := c.ApplyOp(neg); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestPNCounterMergeConverges(t *testing.T) {
	a := crdt.NewPNCounter("votes")
	b := crdt.NewPNCounter("votes")

	opA, _ := a.CreateOp("increment", crdt.Payload{"amount": int64(10)}, "a", 1)
	_ = a.ApplyOp(opA)
	decA, _ := a.CreateOp("decrement", crdt.Payload{"amount": int64(3)}, "a", 2)
	_ = a.ApplyOp(decA)

	opB, _ := b.CreateOp("increment", crdt.Payload{"amount": int64(5)}, "b", 1)
	_ = b.ApplyOp(opB)
	decB, _ := b.CreateOp("decrement", crdt.Payload{"amount": int64(2)}, "b", 2)
	_ = b.ApplyOp(decB)

	_ = a.Merge(b.Snapshot())
	_ = b.Merge(a.Snapshot())

	if a.Value() != b.Value() {
		t.Errorf("replicas diverged: %v vs %v", a.Value(), b.Value())
	}
	if v := a.Value().(int64); v != 10 {
		t.Errorf("want 10, got %d", v)
	}
}
