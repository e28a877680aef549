package postcard

import "math"

// Encoder accumulates a postcard-encoded byte stream. The zero value is
// ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoded bytes.
func (e *Encoder) Bytes() []byte { return e.buf }

// Uint appends an unsigned varint.
func (e *Encoder) Uint(v uint64) { e.buf = PutUvarint(e.buf, v) }

// Int appends a zigzag varint.
func (e *Encoder) Int(v int64) { e.buf = PutVarint(e.buf, v) }

// Byte appends a single raw byte (used for option tags, bools, enum tags).
func (e *Encoder) Byte(b byte) { e.buf = append(e.buf, b) }

// Bool appends a single byte: 1 for true, 0 for false.
func (e *Encoder) Bool(b bool) {
	if b {
		e.Byte(1)
	} else {
		e.Byte(0)
	}
}

// F32 appends an IEEE-754 little-endian float32.
func (e *Encoder) F32(f float32) {
	bits := math.Float32bits(f)
	e.buf = append(e.buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
}

// F64 appends an IEEE-754 little-endian float64.
func (e *Encoder) F64(f float64) {
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		e.buf = append(e.buf, byte(bits>>(8*i)))
	}
}

// String appends a (varint length, utf-8 bytes) string.
func (e *Encoder) String(s string) {
	e.Uint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// OptionNone appends the None tag (0) of an option.
func (e *Encoder) OptionNone() { e.Byte(0) }

// OptionSome appends the Some tag (1); callers encode the inner value
// immediately afterward.
func (e *Encoder) OptionSome() { e.Byte(1) }

// OptionString appends an option<string>.
func (e *Encoder) OptionString(s *string) {
	if s == nil {
		e.OptionNone()
		return
	}
	e.OptionSome()
	e.String(*s)
}

// OptionI64 appends an option<i64>.
func (e *Encoder) OptionI64(v *int64) {
	if v == nil {
		e.OptionNone()
		return
	}
	e.OptionSome()
	e.Int(*v)
}

// OptionF32 appends an option<f32>.
func (e *Encoder) OptionF32(v *float32) {
	if v == nil {
		e.OptionNone()
		return
	}
	e.OptionSome()
	e.F32(*v)
}

// VecStrings appends a vec<string>.
func (e *Encoder) VecStrings(vs []string) {
	e.Uint(uint64(len(vs)))
	for _, s := range vs {
		e.String(s)
	}
}

// OptionVecStrings appends an option<vec<string>>, treating a nil slice as
// None and a non-nil (possibly empty) slice as Some.
func (e *Encoder) OptionVecStrings(vs []string) {
	if vs == nil {
		e.OptionNone()
		return
	}
	e.OptionSome()
	e.VecStrings(vs)
}

// MapStrings appends a map<string,string>.
func (e *Encoder) MapStrings(m map[string]string) {
	e.Uint(uint64(len(m)))
	for k, v := range m {
		e.String(k)
		e.String(v)
	}
}
