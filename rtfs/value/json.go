package value

import "encoding/json"

// ToJSON projects a Value into a plain Go value suitable for
// encoding/json: nil, bool, float64/int64, string, []any, or map[string]any.
// Keywords and symbols degrade to their bare name string; functions and
// resources, which cross no process boundary, are projected as nil.
func ToJSON(v Value) any {
	switch v.tag {
	case TagNil:
		return nil
	case TagBool:
		return bool(v.b)
	case TagInt:
		return v.i
	case TagFloat:
		return v.f
	case TagString, TagSymbol:
		return v.s
	case TagKeyword:
		return v.s
	case TagVector, TagList:
		seq := v.Seq()
		out := make([]any, len(seq))
		for i, item := range seq {
			out[i] = ToJSON(item)
		}
		return out
	case TagMap:
		out := make(map[string]any, len(v.mp.keys))
		for _, k := range v.mp.keys {
			val, _ := v.mp.get(k)
			out[k.String()] = ToJSON(val)
		}
		return out
	case TagError:
		return v.err.Error()
	default:
		return nil
	}
}

// FromJSON converts a decoded JSON value (as produced by encoding/json's
// interface{} unmarshaling: nil, bool, float64, string, []any, map[string]any)
// into a Value. Map keys are always treated as string keys.
func FromJSON(j any) Value {
	switch t := j.(type) {
	case nil:
		return Nil()
	case bool:
		return Bool_(t)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return Float(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromJSON(e)
		}
		return VectorFrom(items)
	case map[string]any:
		m := newOrderedMap()
		for k, val := range t {
			m.set(StringKey(k), FromJSON(val))
		}
		return Value{tag: TagMap, mp: m}
	default:
		return Nil()
	}
}

// MarshalJSON encodes a Value via its JSON projection, so Values embedded in
// persisted documents (intents, manifests) serialize without a custom codec
// at every call site.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToJSON(v))
}

// UnmarshalJSON decodes a JSON projection back into a Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromJSON(raw)
	return nil
}
