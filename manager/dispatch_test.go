package manager_test

import (
	"context"
	"testing"
	"time"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/manager"
	"github.com/da1nerd/gossip-crdts/store"
	"github.com/da1nerd/gossip-crdts/transport"
)

func TestDispatchSilentlyDropsOperationForUnregisteredID(t *testing.T) {
	hub := transport.NewHub()
	a, _ := newTestManager(t, "a", hub)
	b, _ := newTestManager(t, "b", hub)
	ctx := context.Background()

	ca := crdt.NewGCounter("orphan")
	a.Register(ctx, ca)
	// b never registers "orphan".

	opEvents := b.OnOperation()
	if err := a.PerformOperation(ctx, "orphan", "increment", crdt.Payload{"amount": int64(1)}); err != nil {
		t.Fatalf("perform: %v", err)
	}

	select {
	case ev := <-opEvents:
		t.Fatalf("expected no event for unregistered id, got %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSyncEnvelopeIgnoresMisaddressedTargetPeer(t *testing.T) {
	hub := transport.NewHub()
	a, _ := newTestManager(t, "a", hub)
	b, _ := newTestManager(t, "b", hub)
	c, _ := newTestManager(t, "c", hub)
	ctx := context.Background()

	ca := crdt.NewGCounter("shared")
	ca.ApplyOp(crdt.Operation{CRDTID: "shared", Op: "increment", NodeID: "a", Data: crdt.Payload{"amount": int64(4)}})
	a.Register(ctx, ca)

	cb := crdt.NewGCounter("shared")
	b.Register(ctx, cb)
	cc := crdt.NewGCounter("shared")
	c.Register(ctx, cc)

	if err := a.SyncWith(ctx, "b"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if v := cb.Value().(int64); v != 4 {
		t.Fatalf("expected b to merge, got %d", v)
	}
	if v := cc.Value().(int64); v != 0 {
		t.Fatalf("expected c to be untouched by a misaddressed sync, got %d", v)
	}
}

// dropCounter is a metrics recorder that only counts dropped events.
type dropCounter struct{ drops int }

func (d *dropCounter) OperationApplied(string) {}
func (d *dropCounter) OperationFailed(string)  {}
func (d *dropCounter) EventsDropped(string)    { d.drops++ }
func (d *dropCounter) SyncCompleted(string)    {}
func (d *dropCounter) RegisteredCRDTs(int)     {}

func TestEventDropsOnFullSubscriberBufferAreCounted(t *testing.T) {
	hub := transport.NewHub()
	tr := hub.Join("a", 4)
	st := store.NewMemStore()
	rec := &dropCounter{}
	m := manager.New("a", st, tr, manager.WithEventBuffer(1), manager.WithMetrics(rec))
	ctx := context.Background()
	if err := m.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer m.Close()
	defer tr.Close()

	updates := m.OnUpdate()
	// Fill the single-slot buffer, then force a drop without draining.
	m.Register(ctx, crdt.NewGCounter("c1"))
	m.Register(ctx, crdt.NewGCounter("c2"))

	select {
	case ev := <-updates:
		if ev.CRDTID != "c2" {
			t.Fatalf("expected drop-oldest to keep the newest event (c2), got %+v", ev)
		}
	default:
		t.Fatal("expected the newest update to be buffered")
	}
	if rec.drops != 1 {
		t.Errorf("expected exactly one dropped event to be counted, got %d", rec.drops)
	}
}
