package crdt

import (
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// GCounter is a grow-only counter: each replica tracks its own
// monotonically non-decreasing count, and the value is the sum across
// all replicas. Merge takes the element-wise maximum over the union of
// replica keys.
type GCounter struct {
	mu     sync.RWMutex
	id     string
	counts map[string]int64
}

// NewGCounter creates an empty G-Counter with the given id.
func NewGCounter(id string) *GCounter {
	return &GCounter{id: id, counts: make(map[string]int64)}
}

func (c *GCounter) ID() string      { return c.id }
func (c *GCounter) Type() TypeTag   { return TypeGCounter }

func (c *GCounter) ApplyOp(op Operation) error {
	if op.Op != "increment" {
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}

	amount := int64(1)
	if f, ok, err := payloadFloat64(op.Data, "amount"); err != nil {
		return err
	} else if ok {
		amount = int64(f)
	}
	if amount < 0 {
		return fmt.Errorf("amount must be >= 0: %w", crdterr.ErrInvalidPayload)
	}
	if amount == 0 {
		return nil
	}

	origin := op.NodeID
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[origin] += amount
	return nil
}

func (c *GCounter) Value() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, v := range c.counts {
		total += v
	}
	return total
}

func (c *GCounter) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[string]any, len(c.counts))
	for k, v := range c.counts {
		counts[k] = v
	}
	return Snapshot{
		"type":   string(TypeGCounter),
		"id":     c.id,
		"counts": counts,
	}
}

func (c *GCounter) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeGCounter, c.id); err != nil {
		return err
	}
	counts, _, err := payloadMap(Payload(snap), "counts")
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range counts {
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("negative count for %s: %w", k, crdterr.ErrInvariantViolated)
		}
		if n > c.counts[k] {
			c.counts[k] = n
		}
	}
	return nil
}

func (c *GCounter) Copy() CRDT {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dup := NewGCounter(c.id)
	for k, v := range c.counts {
		dup.counts[k] = v
	}
	return dup
}

func (c *GCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int64)
}

func (c *GCounter) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.counts {
		if v < 0 {
			return fmt.Errorf("replica %s has negative count: %w", k, crdterr.ErrInvariantViolated)
		}
	}
	return nil
}

func (c *GCounter) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	if name != "increment" {
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
	if data == nil {
		data = Payload{}
	}
	if _, ok := data["amount"]; !ok {
		data["amount"] = int64(1)
	}
	return NewOperation(c.id, name, data, origin, timestamp), nil
}

// GCounterFromSnapshot reconstructs a GCounter from a prior snapshot.
func GCounterFromSnapshot(snap Snapshot) (*GCounter, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	c := NewGCounter(id)
	if err := c.Merge(snap); err != nil {
		return nil, err
	}
	return c, nil
}
