package strategy

import "github.com/kart-io/ragx/internal/model"

// deepCopyMap clones a parameter map including nested maps.
func deepCopyMap(m model.ParamMap) model.ParamMap {
	out := make(model.ParamMap, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case model.ParamMap:
		return deepCopyMap(t)
	case map[string]any:
		return deepCopyMap(model.ParamMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// mergeParams computes an effective parameter map: a deep copy of base with
// override values applied recursively, but only for keys already present in
// base at each nesting level. Keys unknown to base are dropped silently.
func mergeParams(base, overrides model.ParamMap) model.ParamMap {
	out := deepCopyMap(base)
	for k, ov := range overrides {
		bv, ok := out[k]
		if !ok {
			continue
		}
		bm, bIsMap := asMap(bv)
		om, oIsMap := asMap(ov)
		if bIsMap && oIsMap {
			out[k] = mergeParams(bm, om)
			continue
		}
		out[k] = deepCopyValue(ov)
	}
	return out
}

func asMap(v any) (model.ParamMap, bool) {
	switch t := v.(type) {
	case model.ParamMap:
		return t, true
	case map[string]any:
		return model.ParamMap(t), true
	default:
		return nil, false
	}
}
