package crdt

import (
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// PNCounter supports both increment and decrement. Internally it keeps
// two G-Counter-shaped maps (P for increments, N for decrements) and
// merges each independently by element-wise maximum. Value is ΣP − ΣN.
type PNCounter struct {
	mu sync.RWMutex
	id string
	p  map[string]int64
	n  map[string]int64
}

func NewPNCounter(id string) *PNCounter {
	return &PNCounter{id: id, p: make(map[string]int64), n: make(map[string]int64)}
}

func (c *PNCounter) ID() string    { return c.id }
func (c *PNCounter) Type() TypeTag { return TypePNCounter }

func (c *PNCounter) ApplyOp(op Operation) error {
	var target map[string]int64

	switch op.Op {
	case "increment":
		target = c.p
	case "decrement":
		target = c.n
	default:
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}

	amount := int64(1)
	if f, ok, err := payloadFloat64(op.Data, "amount"); err != nil {
		return err
	} else if ok {
		amount = int64(f)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be > 0: %w", crdterr.ErrInvalidPayload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	target[op.NodeID] += amount
	return nil
}

func (c *PNCounter) Value() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, v := range c.p {
		total += v
	}
	for _, v := range c.n {
		total -= v
	}
	return total
}

func (c *PNCounter) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := make(map[string]any, len(c.p))
	for k, v := range c.p {
		p[k] = v
	}
	n := make(map[string]any, len(c.n))
	for k, v := range c.n {
		n[k] = v
	}
	return Snapshot{
		"type": string(TypePNCounter),
		"id":   c.id,
		"p":    p,
		"n":    n,
	}
}

func (c *PNCounter) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypePNCounter, c.id); err != nil {
		return err
	}
	p, _, err := payloadMap(Payload(snap), "p")
	if err != nil {
		return err
	}
	n, _, err := payloadMap(Payload(snap), "n")
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := mergeMaxInto(c.p, p); err != nil {
		return err
	}
	if err := mergeMaxInto(c.n, n); err != nil {
		return err
	}
	return nil
}

func mergeMaxInto(dest map[string]int64, src map[string]any) error {
	for k, v := range src {
		val, err := toInt64(v)
		if err != nil {
			return err
		}
		if val < 0 {
			return fmt.Errorf("negative count for %s: %w", k, crdterr.ErrInvariantViolated)
		}
		if val > dest[k] {
			dest[k] = val
		}
	}
	return nil
}

func (c *PNCounter) Copy() CRDT {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dup := NewPNCounter(c.id)
	for k, v := range c.p {
		dup.p[k] = v
	}
	for k, v := range c.n {
		dup.n[k] = v
	}
	return dup
}

func (c *PNCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p = make(map[string]int64)
	c.n = make(map[string]int64)
}

func (c *PNCounter) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.p {
		if v < 0 {
			return fmt.Errorf("replica %s has negative P count: %w", k, crdterr.ErrInvariantViolated)
		}
	}
	for k, v := range c.n {
		if v < 0 {
			return fmt.Errorf("replica %s has negative N count: %w", k, crdterr.ErrInvariantViolated)
		}
	}
	return nil
}

func (c *PNCounter) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	if name != "increment" && name != "decrement" {
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

func PNCounterFromSnapshot(snap Snapshot) (*PNCounter, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	c := NewPNCounter(id)
	if err := c.Merge(snap); err != nil {
		return nil, err
	}
	return c, nil
}
