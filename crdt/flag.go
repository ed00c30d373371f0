package crdt

import (
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// EnableWinsFlag is a boolean CRDT where merge is logical OR: once any
// replica has observed enable, that observation survives merges until a
// causally later disable is applied directly at every replica that
// held the true value. There is no tombstone tracking beyond the bit
// itself: concurrent enable and disable always resolve to enabled.
type EnableWinsFlag struct {
	mu    sync.RWMutex
	id    string
	value bool
}

func NewEnableWinsFlag(id string) *EnableWinsFlag {
	return &EnableWinsFlag{id: id}
}

func (f *EnableWinsFlag) ID() string    { return f.id }
func (f *EnableWinsFlag) Type() TypeTag { return TypeEnableWinsFlag }

func (f *EnableWinsFlag) ApplyOp(op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch op.Op {
	case "enable":
		f.value = true
		return nil
	case "disable":
		f.value = false
		return nil
	case "toggle":
		f.value = !f.value
		return nil
	case "set":
		v, ok := op.Data["value"].(bool)
		if !ok {
			return fmt.Errorf("value: %w", crdterr.ErrInvalidPayload)
		}
		f.value = v
		return nil
	default:
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}
}

func (f *EnableWinsFlag) Value() any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

func (f *EnableWinsFlag) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Snapshot{
		"type":  string(TypeEnableWinsFlag),
		"id":    f.id,
		"value": f.value,
	}
}

func (f *EnableWinsFlag) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeEnableWinsFlag, f.id); err != nil {
		return err
	}
	v, _ := snap["value"].(bool)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = f.value || v
	return nil
}

func (f *EnableWinsFlag) Copy() CRDT {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &EnableWinsFlag{id: f.id, value: f.value}
}

func (f *EnableWinsFlag) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = false
}

func (f *EnableWinsFlag) Validate() error { return nil }

func (f *EnableWinsFlag) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	switch name {
	case "enable", "disable", "toggle", "set":
	default:
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
	return NewOperation(f.id, name, data, origin, timestamp), nil
}

func EnableWinsFlagFromSnapshot(snap Snapshot) (*EnableWinsFlag, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	f := NewEnableWinsFlag(id)
	if err := f.Merge(snap); err != nil {
		return nil, err
	}
	return f, nil
}
