package pluginhost

import (
	"context"
	"log/slog"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/datetime"
	"github.com/goatkit/sourcehost/internal/table"
)

// buildStd registers the std import namespace (spec §4.4): value
// creation/inspection, buffer length/read, destroy, date parsing. Every
// function's wasm-visible signature is numeric only (i32/i64/f32/f64);
// strings cross the boundary as a (ptr, len) pair read out of plugin linear
// memory, per the ABI's actual wire contract.
func (inst *Instance) buildStd(b *moduleBuilder) {
	b.reg("destroy", inst.stdDestroy)
	b.reg("buffer_len", inst.stdBufferLen)
	b.reg("read_buffer", inst.stdReadBuffer)
	b.reg("typeof", inst.stdTypeof)

	b.reg("create_null", inst.stdCreateNull)
	b.reg("create_int", inst.stdCreateInt)
	b.reg("create_float", inst.stdCreateFloat)
	b.reg("create_string", inst.stdCreateString)
	b.reg("create_bool", inst.stdCreateBool)
	b.reg("create_object", inst.stdCreateObject)
	b.reg("create_array", inst.stdCreateArray)
	b.reg("create_date", inst.stdCreateDate)

	b.reg("copy", inst.stdCopy)

	b.reg("object_len", inst.stdObjectLen)
	b.reg("object_get", inst.stdObjectGet)
	b.reg("object_set", inst.stdObjectSet)
	b.reg("object_remove", inst.stdObjectRemove)
	b.reg("object_keys", inst.stdObjectKeys)
	b.reg("object_values", inst.stdObjectValues)

	b.reg("array_len", inst.stdArrayLen)
	b.reg("array_get", inst.stdArrayGet)
	b.reg("array_set", inst.stdArraySet)
	b.reg("array_append", inst.stdArrayAppend)
	b.reg("array_remove", inst.stdArrayRemove)

	b.reg("string_len", inst.stdStringLen)
	b.reg("read_string", inst.stdReadString)
	b.reg("read_int", inst.stdReadInt)
	b.reg("read_float", inst.stdReadFloat)
	b.reg("read_bool", inst.stdReadBool)
	b.reg("read_date", inst.stdReadDate)
	b.reg("read_date_string", inst.stdReadDateString)

	b.reg("parse_date", inst.stdParseDate)
	b.reg("current_date", inst.stdCurrentDate)
	b.reg("utc_offset", inst.stdUTCOffset)
}

func (inst *Instance) valueAt(rid int32) (*Value, bool) {
	payload, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	v, ok := payload.(*Value)
	return v, ok
}

func (inst *Instance) stdDestroy(ctx context.Context, mod api.Module, rid int32) int32 {
	if inst.table.Destroy(rid) {
		return 0
	}
	return abierr.StdInvalidDescriptor
}

func (inst *Instance) stdBufferLen(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	buf, ok := v.encodedBuffer(inst.resolveArrayString)
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	inst.table.Update(rid, v)
	return int32(len(buf))
}

func (inst *Instance) resolveArrayString(rid int32) (string, bool) {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

func (inst *Instance) stdReadBuffer(ctx context.Context, mod api.Module, rid int32, outPtr, size uint32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	buf, ok := v.encodedBuffer(inst.resolveArrayString)
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	if size > uint32(len(buf)) {
		return abierr.StdInvalidBufferSize
	}
	if !inst.writeBytes(outPtr, buf[:size]) {
		return abierr.StdFailedMemoryWrite
	}
	return 0
}

func (inst *Instance) stdTypeof(ctx context.Context, mod api.Module, rid int32) int32 {
	kind, ok := inst.table.Kind(rid)
	if !ok {
		return int32(KindUnknown)
	}
	switch kind {
	case table.KindNode, table.KindDocument:
		return int32(KindNode)
	case table.KindValue:
		v, ok := inst.valueAt(rid)
		if !ok || v.Kind == KindBytes {
			return int32(KindUnknown)
		}
		return int32(v.Kind)
	default:
		return int32(KindUnknown)
	}
}

func (inst *Instance) stdCreateNull(ctx context.Context, mod api.Module) int32 {
	return inst.table.Allocate(&Value{Kind: KindNull}, table.KindValue)
}

func (inst *Instance) stdCreateInt(ctx context.Context, mod api.Module, v int64) int32 {
	return inst.table.Allocate(&Value{Kind: KindInt, I: v}, table.KindValue)
}

func (inst *Instance) stdCreateFloat(ctx context.Context, mod api.Module, v float64) int32 {
	return inst.table.Allocate(&Value{Kind: KindFloat, F: v}, table.KindValue)
}

func (inst *Instance) stdCreateString(ctx context.Context, mod api.Module, ptr, length uint32) int32 {
	s, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.StdInvalidString
	}
	return inst.table.Allocate(&Value{Kind: KindString, S: s}, table.KindValue)
}

func (inst *Instance) stdCreateBool(ctx context.Context, mod api.Module, v int32) int32 {
	return inst.table.Allocate(&Value{Kind: KindBool, Bool: v != 0}, table.KindValue)
}

func (inst *Instance) stdCreateObject(ctx context.Context, mod api.Module) int32 {
	return inst.table.Allocate(&Value{Kind: KindObject, Obj: make(map[string]int32)}, table.KindValue)
}

func (inst *Instance) stdCreateArray(ctx context.Context, mod api.Module) int32 {
	return inst.table.Allocate(&Value{Kind: KindArray}, table.KindValue)
}

func (inst *Instance) stdCreateDate(ctx context.Context, mod api.Module, seconds int64) int32 {
	return inst.table.Allocate(&Value{Kind: KindDate, Date: time.Unix(seconds, 0).UTC()}, table.KindValue)
}

func (inst *Instance) stdCopy(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	cp := *v
	return inst.table.Allocate(&cp, table.KindValue)
}

func (inst *Instance) stdObjectLen(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindObject {
		return abierr.StdInvalidDescriptor
	}
	return int32(len(v.Obj))
}

func (inst *Instance) stdObjectGet(ctx context.Context, mod api.Module, rid int32, keyPtr, keyLen uint32) int32 {
	key, ok := inst.readString(keyPtr, keyLen)
	if !ok {
		return abierr.StdInvalidString
	}
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindObject {
		return abierr.StdInvalidDescriptor
	}
	child, ok := v.Obj[key]
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	return child
}

func (inst *Instance) stdObjectSet(ctx context.Context, mod api.Module, rid int32, keyPtr, keyLen uint32, childRid int32) int32 {
	key, ok := inst.readString(keyPtr, keyLen)
	if !ok {
		return abierr.StdInvalidString
	}
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindObject {
		return abierr.StdInvalidDescriptor
	}
	if v.Obj == nil {
		v.Obj = make(map[string]int32)
	}
	v.Obj[key] = childRid
	inst.table.Update(rid, v)
	return 0
}

func (inst *Instance) stdObjectRemove(ctx context.Context, mod api.Module, rid int32, keyPtr, keyLen uint32) int32 {
	key, ok := inst.readString(keyPtr, keyLen)
	if !ok {
		return abierr.StdInvalidString
	}
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindObject {
		return abierr.StdInvalidDescriptor
	}
	delete(v.Obj, key)
	inst.table.Update(rid, v)
	return 0
}

func (inst *Instance) stdObjectKeys(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindObject {
		return abierr.StdInvalidDescriptor
	}
	arr := &Value{Kind: KindArray}
	for k := range v.Obj {
		arr.Arr = append(arr.Arr, inst.table.Allocate(&Value{Kind: KindString, S: k}, table.KindValue))
	}
	return inst.table.Allocate(arr, table.KindValue)
}

func (inst *Instance) stdObjectValues(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindObject {
		return abierr.StdInvalidDescriptor
	}
	arr := &Value{Kind: KindArray}
	for _, child := range v.Obj {
		inst.table.Retain(child)
		arr.Arr = append(arr.Arr, child)
	}
	return inst.table.Allocate(arr, table.KindValue)
}

func (inst *Instance) stdArrayLen(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindArray {
		return abierr.StdInvalidDescriptor
	}
	return int32(len(v.Arr))
}

func (inst *Instance) stdArrayGet(ctx context.Context, mod api.Module, rid int32, index int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindArray || index < 0 || int(index) >= len(v.Arr) {
		return abierr.StdInvalidDescriptor
	}
	return v.Arr[index]
}

func (inst *Instance) stdArraySet(ctx context.Context, mod api.Module, rid int32, index, childRid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindArray || index < 0 || int(index) >= len(v.Arr) {
		return abierr.StdInvalidDescriptor
	}
	v.Arr[index] = childRid
	inst.table.Update(rid, v)
	return 0
}

func (inst *Instance) stdArrayAppend(ctx context.Context, mod api.Module, rid int32, childRid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindArray {
		return abierr.StdInvalidDescriptor
	}
	v.Arr = append(v.Arr, childRid)
	inst.table.Update(rid, v)
	return 0
}

func (inst *Instance) stdArrayRemove(ctx context.Context, mod api.Module, rid int32, index int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindArray || index < 0 || int(index) >= len(v.Arr) {
		return abierr.StdInvalidDescriptor
	}
	v.Arr = append(v.Arr[:index], v.Arr[index+1:]...)
	inst.table.Update(rid, v)
	return 0
}

func (inst *Instance) stdStringLen(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindString {
		return abierr.StdInvalidDescriptor
	}
	return int32(len(v.S))
}

func (inst *Instance) stdReadString(ctx context.Context, mod api.Module, rid int32, outPtr, size uint32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindString {
		return abierr.StdInvalidString
	}
	if uint32(len(v.S)) > size {
		return abierr.StdInvalidBufferSize
	}
	if !inst.writeBytes(outPtr, []byte(v.S)[:size]) {
		return abierr.StdFailedMemoryWrite
	}
	return 0
}

// stdReadInt returns the value's integer interpretation, or 0 for an
// invalid/incompatible descriptor. It additionally accepts a raw-bytes
// payload from the settings path, per spec §9's compatibility wart.
func (inst *Instance) stdReadInt(ctx context.Context, mod api.Module, rid int32) int64 {
	v, ok := inst.valueAt(rid)
	if !ok {
		return 0
	}
	switch v.Kind {
	case KindInt:
		return v.I
	case KindFloat:
		return int64(v.F)
	case KindBool:
		return int64(boolToI32(v.Bool))
	case KindBytes:
		_, _, i, ok, f, fok, b, bok := opportunisticRead(v.Bytes)
		switch {
		case ok:
			return i
		case fok:
			return int64(f)
		case bok:
			return int64(boolToI32(b))
		}
	}
	return 0
}

func (inst *Instance) stdReadFloat(ctx context.Context, mod api.Module, rid int32) float64 {
	v, ok := inst.valueAt(rid)
	if !ok {
		return 0
	}
	switch v.Kind {
	case KindFloat:
		return v.F
	case KindInt:
		return float64(v.I)
	case KindBytes:
		_, _, i, iok, f, fok, _, _ := opportunisticRead(v.Bytes)
		switch {
		case fok:
			return float64(f)
		case iok:
			return float64(i)
		}
	}
	return 0
}

func (inst *Instance) stdReadBool(ctx context.Context, mod api.Module, rid int32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok {
		return 0
	}
	switch v.Kind {
	case KindBool:
		return boolToI32(v.Bool)
	case KindInt:
		return boolToI32(v.I != 0)
	case KindBytes:
		_, _, i, iok, _, _, b, bok := opportunisticRead(v.Bytes)
		switch {
		case bok:
			return boolToI32(b)
		case iok:
			return boolToI32(i != 0)
		}
	}
	return 0
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (inst *Instance) stdReadDate(ctx context.Context, mod api.Module, rid int32) int64 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindDate {
		return 0
	}
	return v.Date.Unix()
}

func (inst *Instance) stdReadDateString(ctx context.Context, mod api.Module, rid int32, outPtr, size uint32) int32 {
	v, ok := inst.valueAt(rid)
	if !ok || v.Kind != KindDate {
		return abierr.StdInvalidDateString
	}
	s := v.Date.Format(time.RFC3339)
	if uint32(len(s)) > size {
		return abierr.StdInvalidBufferSize
	}
	if !inst.writeBytes(outPtr, []byte(s)[:size]) {
		return abierr.StdFailedMemoryWrite
	}
	return 0
}

func (inst *Instance) stdParseDate(ctx context.Context, mod api.Module, sPtr, sLen, fmtPtr, fmtLen, localePtr, localeLen, tzPtr, tzLen uint32) int64 {
	s, _ := inst.readString(sPtr, sLen)
	format, _ := inst.readString(fmtPtr, fmtLen)
	locale, _ := inst.readString(localePtr, localeLen)
	tz, _ := inst.readString(tzPtr, tzLen)
	sec, err := datetime.ParseDate(s, format, locale, tz)
	if err != nil {
		inst.logger.Debug("parse_date failed", slog.String("input", s), slog.Any("error", err))
		return 0
	}
	return sec
}

func (inst *Instance) stdCurrentDate(ctx context.Context, mod api.Module) float64 {
	return float64(time.Now().Unix())
}

func (inst *Instance) stdUTCOffset(ctx context.Context, mod api.Module) int64 {
	_, offset := time.Now().Zone()
	return int64(offset)
}
