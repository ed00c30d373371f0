package crdt

import (
	"fmt"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// NewOperation builds an Operation record, deriving an operation id from
// (origin, timestamp) when the caller does not supply one in data under
// the "operationId" key. The id is never relied on for convergence,
// only for de-duplication if a transport requires it.
func NewOperation(crdtID, name string, data Payload, origin string, timestamp int64) Operation {
	opID := ""
	if data != nil {
		if v, ok := data["operationId"]; ok {
			if s, ok := v.(string); ok && s != "" {
				opID = s
			}
		}
	}
	if opID == "" {
		opID = fmt.Sprintf("%s_%d", origin, timestamp)
	}
	return Operation{
		CRDTID:    crdtID,
		Op:        name,
		Data:      data,
		NodeID:    origin,
		Timestamp: timestamp,
		OpID:      opID,
	}
}

// payloadString extracts a required string field from an operation's
// data, wrapping ErrInvalidPayload when absent or of the wrong type.
func payloadString(data Payload, key string) (string, error) {
	v, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, crdterr.ErrInvalidPayload)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string: %w", key, crdterr.ErrInvalidPayload)
	}
	return s, nil
}

// payloadStringOptional extracts an optional string field, returning the
// zero value and ok=false when absent. A present-but-wrong-typed value
// is still an error.
func payloadStringOptional(data Payload, key string) (string, bool, error) {
	v, ok := data[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%s must be a string: %w", key, crdterr.ErrInvalidPayload)
	}
	return s, true, nil
}

// payloadFloat64 extracts an optional numeric field, returning ok=false
// when absent. JSON numbers decode to float64; we also accept int/int64
// for callers building payloads in Go code directly.
func payloadFloat64(data Payload, key string) (float64, bool, error) {
	v, ok := data[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	default:
		return 0, false, fmt.Errorf("%s must be a number: %w", key, crdterr.ErrInvalidPayload)
	}
}

// payloadMap extracts an optional map field, returning ok=false when
// absent.
func payloadMap(data Payload, key string) (map[string]any, bool, error) {
	v, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	switch m := v.(type) {
	case map[string]any:
		return m, true, nil
	case Payload:
		return map[string]any(m), true, nil
	default:
		return nil, false, fmt.Errorf("%s must be an object: %w", key, crdterr.ErrInvalidPayload)
	}
}

// payloadStringSlice extracts an optional list-of-strings field,
// returning ok=false when absent.
func payloadStringSlice(data Payload, key string) ([]string, bool, error) {
	v, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, true, nil
		}
		return nil, false, fmt.Errorf("%s must be a list: %w", key, crdterr.ErrInvalidPayload)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false, fmt.Errorf("%s must be a list of strings: %w", key, crdterr.ErrInvalidPayload)
		}
		out = append(out, s)
	}
	return out, true, nil
}
