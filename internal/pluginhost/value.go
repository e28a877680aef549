package pluginhost

import (
	"strconv"
	"time"

	"github.com/goatkit/sourcehost/internal/postcard"
)

// ValueKind is the logical type std.typeof reports (spec §4.4, §9 design
// notes): a tagged sum mirroring the dynamic, any-typed values plugins pass
// through imports historically modeled on a scripting-language object.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindArray
	KindObject
	KindDate
	KindNode
	KindUnknown
)

// Value is the unified dynamic value stored in the resource table under
// table.KindValue. Array and Object elements are themselves rids into the
// same table, per the spec's "unified id-to-object map" model.
type Value struct {
	Kind  ValueKind
	I     int64
	F     float64
	S     string
	Bool  bool
	Arr   []int32
	Obj   map[string]int32
	Date  time.Time
	Bytes []byte // raw bytes payload, e.g. from defaults.get
}

// KindBytes is a pseudo-kind used internally to tag a Value holding a raw
// byte buffer (the settings-path compatibility wart, spec §4.4/§4.7/§9):
// read_int/read_float/read_bool opportunistically reinterpret these bytes.
const KindBytes ValueKind = 100

// encodedBuffer returns the postcard-encoded byte form of v, used by
// std.buffer_len/read_buffer to present strings and string arrays as a
// single addressable buffer (spec §4.4). resolveString resolves an array
// element rid to its string contents (elements of any other kind make the
// array unencodable as a buffer).
func (v *Value) encodedBuffer(resolveString func(rid int32) (string, bool)) ([]byte, bool) {
	switch v.Kind {
	case KindString:
		e := postcard.NewEncoder()
		e.String(v.S)
		return e.Bytes(), true
	case KindArray:
		strs := make([]string, 0, len(v.Arr))
		for _, rid := range v.Arr {
			s, ok := resolveString(rid)
			if !ok {
				return nil, false
			}
			strs = append(strs, s)
		}
		e := postcard.NewEncoder()
		e.VecStrings(strs)
		return e.Bytes(), true
	case KindBytes:
		return v.Bytes, true
	}
	if v.Bytes != nil {
		return v.Bytes, true
	}
	return nil, false
}

// opportunisticRead implements the settings-path compatibility wart (spec
// §9): read_int/read_float/read_bool must additionally accept a raw-bytes
// payload and try postcard decoding as string, then as i64/f32/bool.
func opportunisticRead(b []byte) (asString string, hasString bool, asInt int64, hasInt bool, asFloat float32, hasFloat bool, asBool bool, hasBool bool) {
	d := postcard.NewDecoder(b)
	if s, ok := d.String(); ok {
		return s, true, 0, false, 0, false, false, false
	}
	d = postcard.NewDecoder(b)
	if i, ok := d.Int(); ok {
		return "", false, i, true, 0, false, false, false
	}
	d = postcard.NewDecoder(b)
	if f, ok := d.F32(); ok {
		return "", false, 0, false, f, true, false, false
	}
	if len(b) == 1 {
		return "", false, 0, false, 0, false, b[0] != 0, true
	}
	if s := string(b); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return "", false, n, true, 0, false, false, false
		}
	}
	return "", false, 0, false, 0, false, false, false
}
