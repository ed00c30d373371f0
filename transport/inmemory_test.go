package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/da1nerd/gossip-crdts/transport"
)

func TestInMemoryPublishReachesOtherMembers(t *testing.T) {
	hub := transport.NewHub()
	a := hub.Join("a", 8)
	b := hub.Join("b", 8)
	defer a.Close()
	defer b.Close()

	env := transport.Envelope{Kind: transport.KindOperation, CRDTID: "x", NodeID: "a", Timestamp: 1}
	if err := a.Publish(context.Background(), env); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-b.Inbound():
		if got.CRDTID != "x" {
			t.Errorf("unexpected envelope: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}

	select {
	case env := <-a.Inbound():
		t.Errorf("sender should not receive its own publish, got %+v", env)
	default:
	}
}

func TestInMemoryCloseClosesInbound(t *testing.T) {
	hub := transport.NewHub()
	a := hub.Join("a", 1)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-a.Inbound(); ok {
		t.Error("expected inbound channel to be closed")
	}
}
