package util

import (
	"encoding/json"
	"fmt"
)

// NormalizePayload round-trips v through JSON so that values held in memory
// have exactly the shape a durable log yields after decoding (maps become
// map[string]any, numbers float64, structs their JSON form).
func NormalizePayload(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	return out, nil
}

// NormalizeArgs is NormalizePayload for argument maps.
func NormalizeArgs(args map[string]any) (map[string]any, error) {
	if args == nil {
		return nil, nil
	}
	v, err := NormalizePayload(args)
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return m, nil
}

// ParseArgs decodes a JSON object string into an argument map. An empty
// string yields an empty map.
func ParseArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	return args, nil
}

// Stringify renders v as compact JSON, falling back to fmt for values that
// cannot be marshaled. Strings are returned unchanged.
func Stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
