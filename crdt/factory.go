package crdt

import (
	"fmt"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// Factory constructs CRDT instances by type tag. It is a value a
// caller owns rather than a package-level singleton, so a process can
// run several independent managers, each with its own factory, without
// sharing mutable global state.
type Factory struct{}

// NewFactory returns a Factory. It is stateless; there is never a
// reason to hold more than one, but callers are not forced to share a
// package-level instance.
func NewFactory() *Factory { return &Factory{} }

// New constructs an empty CRDT of the given type with the given id.
func (f *Factory) New(id string, typ TypeTag) (CRDT, error) {
	switch typ {
	case TypeGCounter:
		return NewGCounter(id), nil
	case TypePNCounter:
		return NewPNCounter(id), nil
	case TypeGSet:
		return NewGSet(id), nil
	case TypeORSet:
		return NewORSet(id), nil
	case TypeLWWRegister:
		return NewLWWRegister(id), nil
	case TypeMVRegister:
		return NewMVRegister(id), nil
	case TypeLWWMap:
		return NewLWWMap(id), nil
	case TypeORMap:
		return NewORMap(id, f), nil
	case TypeRGAArray:
		return NewRGA(id, f), nil
	case TypeEnableWinsFlag:
		return NewEnableWinsFlag(id), nil
	default:
		return nil, fmt.Errorf("%s: %w", typ, crdterr.ErrUnknownOperation)
	}
}

// FromSnapshot reconstructs a CRDT from a previously taken snapshot,
// dispatching on the "type" field.
func (f *Factory) FromSnapshot(snap Snapshot) (CRDT, error) {
	typ, _ := snap["type"].(string)
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}

	switch TypeTag(typ) {
	case TypeGCounter:
		return GCounterFromSnapshot(snap)
	case TypePNCounter:
		return PNCounterFromSnapshot(snap)
	case TypeGSet:
		return GSetFromSnapshot(snap)
	case TypeORSet:
		return ORSetFromSnapshot(snap)
	case TypeLWWRegister:
		return LWWRegisterFromSnapshot(snap)
	case TypeMVRegister:
		return MVRegisterFromSnapshot(snap)
	case TypeLWWMap:
		return LWWMapFromSnapshot(snap)
	case TypeORMap:
		return ORMapFromSnapshot(snap, f)
	case TypeRGAArray:
		return RGAFromSnapshot(snap, f)
	case TypeEnableWinsFlag:
		return EnableWinsFlagFromSnapshot(snap)
	default:
		_ = id
		return nil, fmt.Errorf("%s: %w", typ, crdterr.ErrUnknownOperation)
	}
}

// defaultFactory backs the package-level FromSnapshot convenience
// function for callers that do not need OR-Map inner-CRDT factories of
// their own.
var defaultFactory = NewFactory()
