// Command demo wires up two in-process replicas over an in-memory
// transport and walks through registration, a local operation, and a
// gossip sync, logging each step. It is a smoke test to run by eye,
// not a general-purpose CLI.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/manager"
	"github.com/da1nerd/gossip-crdts/store"
	"github.com/da1nerd/gossip-crdts/transport"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	ctx := context.Background()

	hub := transport.NewHub()
	nodeA := newReplica(ctx, logger, hub, "nodeA")
	nodeB := newReplica(ctx, logger, hub, "nodeB")
	defer nodeA.Close()
	defer nodeB.Close()

	counter := crdt.NewGCounter("page_views")
	if err := nodeA.Register(ctx, counter); err != nil {
		logger.Fatal().Err(err).Msg("register failed")
	}
	mirror := crdt.NewGCounter("page_views")
	if err := nodeB.Register(ctx, mirror); err != nil {
		logger.Fatal().Err(err).Msg("register failed")
	}

	if err := nodeA.PerformOperation(ctx, "page_views", "increment", crdt.Payload{"amount": int64(3)}); err != nil {
		logger.Fatal().Err(err).Msg("operation failed")
	}
	logger.Info().Interface("value", counter.Value()).Msg("nodeA applied local increment")

	time.Sleep(50 * time.Millisecond)
	logger.Info().Interface("value", mirror.Value()).Msg("nodeB received gossiped operation")

	if err := nodeB.PerformOperation(ctx, "page_views", "increment", crdt.Payload{"amount": int64(5)}); err != nil {
		logger.Fatal().Err(err).Msg("operation failed")
	}
	if err := nodeB.ForceSync(ctx); err != nil {
		logger.Fatal().Err(err).Msg("force sync failed")
	}
	time.Sleep(50 * time.Millisecond)

	logger.Info().Interface("nodeA_value", counter.Value()).Interface("nodeB_value", mirror.Value()).Msg("converged")
}

func newReplica(ctx context.Context, logger zerolog.Logger, hub *transport.Hub, nodeID string) *manager.Manager {
	tr := hub.Join(nodeID, 32)
	st := store.NewMemStore()
	m := manager.New(nodeID, st, tr,
		manager.WithFactory(crdt.NewFactory()),
		manager.WithLogger(logger.With().Str("node", nodeID).Logger()),
	)
	if err := m.Init(ctx); err != nil {
		logger.Fatal().Err(err).Str("node", nodeID).Msg("init failed")
	}
	return m
}
