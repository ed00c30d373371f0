package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

func TestMVRegisterConcurrentWritesStayInResidualSet(t *testing.T) {
	a := crdt.NewMVRegister("pick")
	b := crdt.NewMVRegister("pick")

	opA, _ := a.CreateOp("set", crdt.Payload{"value": "red", "vectorClock": map[string]any{"a": int64(1)}}, "a", 1)
	_ = a.ApplyOp(opA)
	opB, _ := b.CreateOp("set", crdt.Payload{"value": "blue", "vectorClock": map[string]any{"b": int64(1)}}, "b", 1)
	_ = b.ApplyOp(opB)

	_ = a.Merge(b.Snapshot())
	_ = b.Merge(a.Snapshot())

	for _, r := range []*crdt.MVRegister{a, b} {
		vals := r.Value().([]any)
		if len(vals) != 2 {
			t.Errorf("expected both concurrent values to survive, got %v", vals)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("unexpected antichain violation: %v", err)
		}
	}
}

func TestMVRegisterDominatingWriteSupersedes(t *testing.T) {
	r := crdt.NewMVRegister("pick")
	first, _ := r.CreateOp("set", crdt.Payload{"value": "red", "vectorClock": map[string]any{"a": int64(1)}}, "a", 1)
	_ = r.ApplyOp(first)
	second, _ := r.CreateOp("set", crdt.Payload{"value": "green", "vectorClock": map[string]any{"a": int64(2)}}, "a", 2)
	_ = r.ApplyOp(second)

	vals := r.Value().([]any)
	if len(vals) != 1 || vals[0] != "green" {
		t.Errorf("want [green], got %v", vals)
	}
}

func TestMVRegisterReMergeIsIdempotent(t *testing.T) {
	a := crdt.NewMVRegister("pick")
	opA, _ := a.CreateOp("set", crdt.Payload{"value": "red", "vectorClock": map[string]any{"a": int64(1)}}, "a", 1)
	_ = a.ApplyOp(opA)
	opB, _ := a.CreateOp("set", crdt.Payload{"value": "blue", "vectorClock": map[string]any{"b": int64(1)}}, "b", 1)
	_ = a.ApplyOp(opB)

	b := crdt.NewMVRegister("pick")
	opBlue, _ := b.CreateOp("set", crdt.Payload{"value": "blue", "vectorClock": map[string]any{"b": int64(1)}}, "b", 1)
	_ = b.ApplyOp(opBlue)

	if err := b.Merge(a.Snapshot()); err != nil {
		t.Fatal(err)
	}
	vals := b.Value().([]any)
	if len(vals) != 2 {
		t.Fatalf("merging an entry already held under an equal clock must not duplicate it, got %v", vals)
	}

	// Merging the same snapshot again must still not duplicate anything.
	if err := b.Merge(a.Snapshot()); err != nil {
		t.Fatal(err)
	}
	vals = b.Value().([]any)
	if len(vals) != 2 {
		t.Fatalf("re-merging the same snapshot must be idempotent, got %v", vals)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("unexpected antichain violation: %v", err)
	}
}

func TestMVRegisterResolvePicksAndDominates(t *testing.T) {
	a := crdt.NewMVRegister("pick")
	opA, _ := a.CreateOp("set", crdt.Payload{"value": "red", "vectorClock": map[string]any{"a": int64(1)}}, "a", 1)
	_ = a.ApplyOp(opA)
	b := crdt.NewMVRegister("pick")
	opB, _ := b.CreateOp("set", crdt.Payload{"value": "blue", "vectorClock": map[string]any{"b": int64(1)}}, "b", 1)
	_ = b.ApplyOp(opB)
	_ = a.Merge(b.Snapshot())

	resolved := a.Resolve(func(values []any) any { return values[0] }, "resolver")
	if len(resolved.Value().([]any)) != 1 {
		t.Errorf("resolved register should hold exactly one value")
	}
	if err := resolved.Validate(); err != nil {
		t.Errorf("unexpected invariant violation: %v", err)
	}
}
