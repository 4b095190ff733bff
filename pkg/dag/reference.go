package dag

import "strings"

// resolveValue resolves a single value against ctx. Strings beginning with
// "$" are treated as references; everything else passes through unchanged.
// Nested maps are resolved recursively so a params_mapping entry may itself
// be an object containing further references.
func resolveValue(v interface{}, ctx map[string]interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			return resolvePath(val, ctx)
		}
		return val
	case map[string]interface{}:
		return resolveMapping(val, ctx)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, ctx)
		}
		return out
	default:
		return v
	}
}

// resolveMapping resolves every value in a params/output mapping against ctx.
func resolveMapping(mapping map[string]interface{}, ctx map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(mapping))
	for k, v := range mapping {
		out[k] = resolveValue(v, ctx)
	}
	return out
}

// resolvePath walks ctx by the dot-separated segments of a "$.a.b.c"
// reference. Any missing segment, or an attempt to index through a
// non-map value, yields nil.
func resolvePath(ref string, ctx map[string]interface{}) interface{} {
	path := strings.TrimPrefix(ref, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return ctx
	}
	segments := strings.Split(path, ".")

	var cur interface{} = ctx
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		next, ok := m[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// truthy reports whether a resolved condition value should be treated as
// true: present, non-nil, non-empty, and not the boolean/string "false".
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		return true
	}
}
