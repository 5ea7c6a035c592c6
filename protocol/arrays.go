package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyedArray is a sequence re-shaped into a keyed structure for the
// structured (SOAP) transport: element i lives under ItemKey(i).
//
//	[]any{"a", []any{1, 2}}  <->  KeyedArray{"item0": "a", "item1": KeyedArray{"item0": 1, "item1": 2}}
//
// The named type is what marks a map as "typed-array shaped"; ordinary maps
// whose keys happen to look like item0, item1 are left alone.
type KeyedArray map[string]any

const itemPrefix = "item"

// ItemKey returns the positional key for element i.
func ItemKey(i int) string {
	return itemPrefix + strconv.Itoa(i)
}

// ItemIndex parses a positional key produced by ItemKey.
func ItemIndex(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, itemPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// ToKeyed recursively converts every []any inside v into a KeyedArray.
// Maps are copied; scalars are returned as-is.
func ToKeyed(v any) any {
	switch x := v.(type) {
	case []any:
		out := make(KeyedArray, len(x))
		for i, e := range x {
			out[ItemKey(i)] = ToKeyed(e)
		}
		return out
	case KeyedArray:
		out := make(KeyedArray, len(x))
		for k, e := range x {
			out[k] = ToKeyed(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = ToKeyed(e)
		}
		return out
	default:
		return v
	}
}

// FromKeyed reverses ToKeyed: every KeyedArray inside v becomes a []any in
// positional order. A KeyedArray whose keys are not exactly item0..itemN-1 is
// rejected.
func FromKeyed(v any) (any, error) {
	switch x := v.(type) {
	case KeyedArray:
		out := make([]any, len(x))
		seen := make([]bool, len(x))
		for k, e := range x {
			i, ok := ItemIndex(k)
			if !ok || i >= len(x) || seen[i] {
				return nil, fmt.Errorf("malformed keyed array: unexpected key %q", k)
			}
			elem, err := FromKeyed(e)
			if err != nil {
				return nil, err
			}
			out[i] = elem
			seen[i] = true
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			elem, err := FromKeyed(e)
			if err != nil {
				return nil, err
			}
			out[k] = elem
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			elem, err := FromKeyed(e)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	default:
		return v, nil
	}
}
