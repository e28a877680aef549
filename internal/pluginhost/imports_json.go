package pluginhost

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/table"
)

// buildJSON registers the json import namespace: parse, which turns a
// plugin-supplied byte buffer into the unified Value tree, and stringify,
// which renders a Value tree back to JSON text (spec
// §4.6's "json (parse body as JSON)" is net's call into the same decoder).
func (inst *Instance) buildJSON(b *moduleBuilder) {
	b.reg("parse", inst.jsonParse)
	b.reg("stringify", inst.jsonStringify)
}

func (inst *Instance) jsonParse(ctx context.Context, mod api.Module, ptr, length uint32) int32 {
	raw, ok := inst.readBytes(ptr, length)
	if !ok {
		return abierr.StdInvalidString
	}
	rid, ok := inst.decodeJSONInto(raw)
	if !ok {
		return abierr.StdInvalidString
	}
	return rid
}

// decodeJSONInto parses raw JSON text into the unified dynamic Value tree,
// allocating every nested array/object element into the table so Arr/Obj
// hold child rids exactly like any other composite Value.
func (inst *Instance) decodeJSONInto(raw []byte) (int32, bool) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return 0, false
	}
	return inst.allocateJSON(generic), true
}

func (inst *Instance) allocateJSON(v any) int32 {
	switch t := v.(type) {
	case nil:
		return inst.table.Allocate(&Value{Kind: KindNull}, table.KindValue)
	case bool:
		return inst.table.Allocate(&Value{Kind: KindBool, Bool: t}, table.KindValue)
	case float64:
		if t == float64(int64(t)) {
			return inst.table.Allocate(&Value{Kind: KindInt, I: int64(t)}, table.KindValue)
		}
		return inst.table.Allocate(&Value{Kind: KindFloat, F: t}, table.KindValue)
	case string:
		return inst.table.Allocate(&Value{Kind: KindString, S: t}, table.KindValue)
	case []any:
		arr := &Value{Kind: KindArray}
		for _, elem := range t {
			arr.Arr = append(arr.Arr, inst.allocateJSON(elem))
		}
		return inst.table.Allocate(arr, table.KindValue)
	case map[string]any:
		obj := &Value{Kind: KindObject, Obj: make(map[string]int32, len(t))}
		for k, elem := range t {
			obj.Obj[k] = inst.allocateJSON(elem)
		}
		return inst.table.Allocate(obj, table.KindValue)
	default:
		return inst.table.Allocate(&Value{Kind: KindNull}, table.KindValue)
	}
}

func (inst *Instance) jsonStringify(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	raw, err := json.Marshal(valueToAny(v, inst.table))
	if err != nil {
		return abierr.StdInvalidDescriptor
	}
	return inst.table.Allocate(&Value{Kind: KindString, S: string(raw)}, table.KindValue)
}

// valueToAny converts the unified Value tree back to a generic Go value
// suitable for json.Marshal, resolving Array/Object element rids through
// the owning table.
func valueToAny(v *Value, t *table.Table) any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.I
	case KindFloat:
		return v.F
	case KindString:
		return v.S
	case KindArray:
		out := make([]any, 0, len(v.Arr))
		for _, rid := range v.Arr {
			if payload, ok := t.Read(rid); ok {
				if child, ok := payload.(*Value); ok {
					out = append(out, valueToAny(child, t))
					continue
				}
			}
			out = append(out, nil)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Obj))
		for k, rid := range v.Obj {
			if payload, ok := t.Read(rid); ok {
				if child, ok := payload.(*Value); ok {
					out[k] = valueToAny(child, t)
					continue
				}
			}
			out[k] = nil
		}
		return out
	default:
		return nil
	}
}
