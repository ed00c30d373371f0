// Package crdt implements the family of CRDT state machines (counters,
// sets, registers, maps, a sequence, and a flag), together with the
// polymorphic surface the manager package drives them through.
package crdt

// TypeTag identifies a CRDT variant on the wire. These are the fixed
// strings every snapshot's "type" field carries.
type TypeTag string

const (
	TypeGCounter       TypeTag = "GCounter"
	TypePNCounter      TypeTag = "PNCounter"
	TypeGSet           TypeTag = "GSet"
	TypeORSet          TypeTag = "ORSet"
	TypeLWWRegister    TypeTag = "LWWRegister"
	TypeMVRegister     TypeTag = "MVRegister"
	TypeLWWMap         TypeTag = "LWWMap"
	TypeORMap          TypeTag = "ORMap"
	TypeRGAArray       TypeTag = "RGAArray"
	TypeEnableWinsFlag TypeTag = "EnableWinsFlag"
)

// Snapshot is a self-describing, JSON-compatible state map. Every
// snapshot carries at least "type" and "id"; the remaining fields are
// variant-specific.
type Snapshot map[string]any

// Payload is the string-keyed data attached to an Operation.
type Payload map[string]any

// Operation is a replicable description of a local change: which CRDT
// it targets, which op it names, the data it carries, who produced it,
// and when.
type Operation struct {
	CRDTID    string  `json:"crdtId"`
	Op        string  `json:"operation"`
	Data      Payload `json:"data"`
	NodeID    string  `json:"nodeId"`
	Timestamp int64   `json:"timestamp"`
	OpID      string  `json:"operationId"`
}

// CRDT is the uniform capability set every variant exposes. The manager
// drives every registered replica through this surface alone; it never
// reaches into a variant's concrete type.
type CRDT interface {
	// ID returns this CRDT's identifier. Immutable for its lifetime.
	ID() string

	// Type returns this CRDT's wire type tag. Immutable for its
	// lifetime.
	Type() TypeTag

	// ApplyOp mutates state from a locally originated or remote
	// operation. Returns ErrUnknownOperation for an unrecognised op
	// name and ErrInvalidPayload when required data is missing or
	// ill-typed.
	ApplyOp(op Operation) error

	// Snapshot produces a self-describing state map suitable for
	// persistence and transmission.
	Snapshot() Snapshot

	// Merge joins another replica's snapshot into this one. Returns
	// ErrStateTypeMismatch when the snapshot's type or id does not
	// match this CRDT's.
	Merge(snap Snapshot) error

	// Copy returns a deep clone of this CRDT.
	Copy() CRDT

	// Reset returns this CRDT to its empty/initial state, preserving
	// id and type.
	Reset()

	// Validate returns ErrInvariantViolated (wrapped) if any of this
	// variant's invariants do not hold. Advisory only, never called
	// on the fast path.
	Validate() error

	// CreateOp builds an Operation record for this CRDT, filling
	// variant-specific defaults (e.g. default amount, generated
	// tag/UID) before the caller hands it to ApplyOp or the manager.
	CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error)

	// Value returns the variant's user-facing value (sum, set
	// contents, current register value, visible sequence, ...).
	Value() any
}

// FromSnapshot reconstructs a CRDT of the given type from a snapshot
// taken earlier (by this replica or another). It is the inverse of
// Snapshot and satisfies the round-trip law: FromSnapshot(c.Snapshot())
// merges to an equivalent state as c.
func FromSnapshot(snap Snapshot) (CRDT, error) {
	return defaultFactory.FromSnapshot(snap)
}
