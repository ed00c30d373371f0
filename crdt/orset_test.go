package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

// TestORSetConcurrentAddSurvivesPartialRemove reproduces the scenario
// where A adds an element, B concurrently adds the same element under a
// different tag, and A removes only the tag it observed. The element
// must remain present until every observed tag is removed.
func TestORSetConcurrentAddSurvivesPartialRemove(t *testing.T) {
	a := crdt.NewORSet("fruit")
	b := crdt.NewORSet("fruit")

	addA, _ := a.CreateOp("add", crdt.Payload{"element": "apple", "tag": "t1"}, "a", 1)
	_ = a.ApplyOp(addA)

	addB, _ := b.CreateOp("add", crdt.Payload{"element": "apple", "tag": "t2"}, "b", 1)
	_ = b.ApplyOp(addB)

	remA, _ := a.CreateOp("remove", crdt.Payload{"element": "apple", "tag": "t1"}, "a", 2)
	_ = a.ApplyOp(remA)

	_ = a.Merge(b.Snapshot())
	_ = b.Merge(a.Snapshot())

	for _, replica := range []*crdt.ORSet{a, b} {
		vals := replica.Value().([]any)
		if len(vals) != 1 || vals[0] != "apple" {
			t.Errorf("expected [apple] to survive, got %v", vals)
		}
	}
}

func TestORSetRemoveAllTagsClears(t *testing.T) {
	s := crdt.NewORSet("fruit")
	add1, _ := s.CreateOp("add", crdt.Payload{"element": "apple", "tag": "t1"}, "a", 1)
	add2, _ := s.CreateOp("add", crdt.Payload{"element": "apple", "tag": "t2"}, "b", 1)
	_ = s.ApplyOp(add1)
	_ = s.ApplyOp(add2)

	rem, _ := s.CreateOp("remove", crdt.Payload{"element": "apple"}, "a", 2)
	_ = s.ApplyOp(rem)

	if len(s.Value().([]any)) != 0 {
		t.Errorf("expected empty set after removing all tags")
	}
}

func TestORSetCreateOpGeneratesTagUpFront(t *testing.T) {
	clock := &crdt.FixedClock{Millis: 1000, Digits: []string{"000001"}}
	s := crdt.NewORSetWithClock("fruit", clock)

	op, err := s.CreateOp("add", crdt.Payload{"element": "apple"}, "a", 1)
	if err != nil {
		t.Fatal(err)
	}
	tag, ok := op.Data["tag"].(string)
	if !ok || tag == "" {
		t.Fatalf("expected CreateOp to fill in a tag, got %v", op.Data)
	}

	// Applying the same op record twice (as a remote replica would,
	// replayed from the gossiped envelope) must not mint a second tag.
	if err := s.ApplyOp(op); err != nil {
		t.Fatal(err)
	}
	other := crdt.NewORSetWithClock("fruit", &crdt.FixedClock{Millis: 2000, Digits: []string{"999999"}})
	if err := other.ApplyOp(op); err != nil {
		t.Fatal(err)
	}
	if err := s.Merge(other.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if len(s.Value().([]any)) != 1 {
		t.Fatalf("expected one element after merging the same tagged add twice, got %v", s.Value())
	}
}

func TestORSetValidateNoOrphanTombstones(t *testing.T) {
	s := crdt.NewORSet("fruit")
	add, _ := s.CreateOp("add", crdt.Payload{"element": "apple", "tag": "t1"}, "a", 1)
	_ = s.ApplyOp(add)
	rem, _ := s.CreateOp("remove", crdt.Payload{"element": "apple", "tag": "t1"}, "a", 2)
	_ = s.ApplyOp(rem)

	if err := s.Validate(); err != nil {
		t.Errorf("unexpected invariant violation: %v", err)
	}
}
