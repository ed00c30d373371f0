package crdt_test

import (
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
)

func TestEnableWinsFlagToggle(t *testing.T) {
	f := crdt.NewEnableWinsFlag("feature")
	enable, _ := f.CreateOp("enable", nil, "a", 1)
	_ = f.ApplyOp(enable)
	if f.Value() != true {
		t.Error("expected enabled")
	}
	toggle, _ := f.CreateOp("toggle", nil, "a", 2)
	_ = f.ApplyOp(toggle)
	if f.Value() != false {
		t.Error("expected disabled after toggle")
	}
}

func TestEnableWinsFlagConcurrentEnableBeatsDisable(t *testing.T) {
	a := crdt.NewEnableWinsFlag("feature")
	enable, _ := a.CreateOp("enable", nil, "a", 1)
	_ = a.ApplyOp(enable)

	b := crdt.NewEnableWinsFlag("feature")
	disable, _ := b.CreateOp("disable", nil, "b", 1)
	_ = b.ApplyOp(disable)

	_ = a.Merge(b.Snapshot())
	_ = b.Merge(a.Snapshot())

	if a.Value() != true || b.Value() != true {
		t.Errorf("enable must win over a concurrent disable, got a=%v b=%v", a.Value(), b.Value())
	}
}
