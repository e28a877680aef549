package pluginhost

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/postcard"
	"github.com/goatkit/sourcehost/internal/table"
)

// Settings kind tags for defaults.set's value_ptr payload (spec §4.7).
const (
	settingKindData   = 0
	settingKindBool   = 1
	settingKindInt    = 2
	settingKindFloat  = 3
	settingKindString = 4
	settingKindArray  = 5
	settingKindNull   = 6
)

// buildDefaults registers the defaults import namespace (spec §4.7): the
// core is not the persistence layer, it only encodes/decodes across the
// SettingsGetter/SettingsSetter boundary.
func (inst *Instance) buildDefaults(b *moduleBuilder) {
	b.reg("get", inst.defaultsGet)
	b.reg("set", inst.defaultsSet)
}

// defaultsGet reads the key through the injected SettingsGetter, encodes
// whatever comes back in postcard form, and stores the bytes as a
// KindBytes Value the plugin reads through std.read_buffer/read_int/etc.
func (inst *Instance) defaultsGet(ctx context.Context, mod api.Module, keyPtr, keyLen uint32) int32 {
	key, ok := inst.readString(keyPtr, keyLen)
	if !ok {
		return abierr.StdInvalidString
	}
	if inst.opts.SettingsGetter == nil {
		return abierr.StdInvalidDescriptor
	}
	if !inst.sandbox.AllowSettingsKey(key, false) {
		return abierr.StdInvalidDescriptor
	}
	val, ok := inst.opts.SettingsGetter.GetSetting(ctx, key)
	if !ok {
		return abierr.StdInvalidDescriptor
	}
	buf := encodeSettingValue(val)
	return inst.table.Allocate(&Value{Kind: KindBytes, Bytes: buf}, table.KindValue)
}

func encodeSettingValue(val any) []byte {
	e := postcard.NewEncoder()
	switch v := val.(type) {
	case bool:
		e.Bool(v)
	case int:
		e.Int(int64(v))
	case int32:
		e.Int(int64(v))
	case int64:
		e.Int(v)
	case float32:
		e.F32(v)
	case float64:
		e.F32(float32(v))
	case string:
		e.String(v)
	case []string:
		e.VecStrings(v)
	case nil:
		// empty payload for null
	default:
		// unrecognised settings value shape; leave the buffer empty rather
		// than guess at an encoding.
	}
	return e.Bytes()
}

// defaultsSet decodes value_ptr according to kind and writes it through the
// injected SettingsSetter (spec §4.7).
func (inst *Instance) defaultsSet(ctx context.Context, mod api.Module, keyPtr, keyLen uint32, kind int32, valuePtr, valueLen uint32) int32 {
	key, ok := inst.readString(keyPtr, keyLen)
	if !ok {
		return abierr.StdInvalidString
	}
	if inst.opts.SettingsSetter == nil {
		return abierr.StdInvalidDescriptor
	}
	if !inst.sandbox.AllowSettingsKey(key, true) {
		return abierr.StdInvalidDescriptor
	}

	var value any
	switch kind {
	case settingKindData:
		raw, ok := inst.readBytes(valuePtr, valueLen)
		if !ok {
			return abierr.StdInvalidBufferSize
		}
		value = raw
	case settingKindBool:
		raw, ok := inst.readBytes(valuePtr, valueLen)
		if !ok || len(raw) == 0 {
			return abierr.StdInvalidBufferSize
		}
		value = raw[0] != 0
	case settingKindInt:
		d := postcard.NewDecoder(mustBytes(inst, valuePtr, valueLen))
		i, ok := d.Int()
		if !ok {
			return abierr.StdInvalidBufferSize
		}
		value = i
	case settingKindFloat:
		d := postcard.NewDecoder(mustBytes(inst, valuePtr, valueLen))
		f, ok := d.F32()
		if !ok {
			return abierr.StdInvalidBufferSize
		}
		value = f
	case settingKindString:
		s, ok := inst.readString(valuePtr, valueLen)
		if !ok {
			return abierr.StdInvalidString
		}
		value = s
	case settingKindArray:
		d := postcard.NewDecoder(mustBytes(inst, valuePtr, valueLen))
		arr, ok := d.VecStrings()
		if !ok {
			return abierr.StdInvalidBufferSize
		}
		value = arr
	case settingKindNull:
		value = nil
	default:
		return abierr.StdInvalidDescriptor
	}

	if err := inst.opts.SettingsSetter.SetSetting(ctx, key, value); err != nil {
		inst.logger.Warn("defaults.set failed", "key", key, "error", err)
		return abierr.StdInvalidDescriptor
	}
	return 0
}

func mustBytes(inst *Instance, ptr, length uint32) []byte {
	b, ok := inst.readBytes(ptr, length)
	if !ok {
		return nil
	}
	return b
}
