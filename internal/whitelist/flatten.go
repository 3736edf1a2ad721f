package whitelist

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Flatten collects every leaf value of a nested document as a string.
// Map keys are visited in sorted order so the result is deterministic.
func Flatten(doc map[string]any) []string {
	var out []string
	flatten(doc, &out)
	return out
}

func flatten(v any, out *[]string) {
	switch t := v.(type) {
	case nil:
	case string:
		*out = append(*out, t)
	case json.Number:
		*out = append(*out, t.String())
	case float64:
		*out = append(*out, strconv.FormatFloat(t, 'f', -1, 64))
	case float32:
		*out = append(*out, strconv.FormatFloat(float64(t), 'f', -1, 32))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(t[k], out)
		}
	case []any:
		for _, e := range t {
			flatten(e, out)
		}
	case []string:
		*out = append(*out, t...)
	default:
		*out = append(*out, fmt.Sprint(t))
	}
}
