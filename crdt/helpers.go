package crdt

import (
	"fmt"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// checkSnapshot enforces the merge precondition shared by every
// variant: the incoming snapshot's type and id must match the
// receiver's.
func checkSnapshot(snap Snapshot, wantType TypeTag, wantID string) error {
	typ, _ := snap["type"].(string)
	id, _ := snap["id"].(string)
	if typ != string(wantType) || id != wantID {
		return fmt.Errorf("want type=%s id=%s, got type=%s id=%s: %w",
			wantType, wantID, typ, id, crdterr.ErrStateTypeMismatch)
	}
	return nil
}

// toInt64 coerces a JSON-decoded numeric value to int64.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %w", crdterr.ErrInvalidPayload)
	}
}

// stringSetToSlice renders a set of strings (map keys) as a list for
// inclusion in a snapshot. The order of the list is not defined.
func stringSetToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// clonePayload makes a shallow copy so CreateOp can fill in generated
// fields (uid, tag) without mutating the caller's map.
func clonePayload(data Payload) Payload {
	out := make(Payload, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	return out
}
