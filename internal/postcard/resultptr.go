package postcard

// ParseResultHeader implements the modern-ABI result pointer convention
// (spec §4.2, §8.8): a header length <= 8 means an empty payload; otherwise
// the first 4 bytes are a little-endian i32 total length L, the next 4 are
// a capacity (ignored here), and the payload is the following L-8 bytes.
//
// raw is the full byte region read from plugin memory starting at the
// result pointer; callers are responsible for knowing how many bytes to
// read before total length is known (typically the host reads 8 bytes
// first, decodes L, then reads L-8 more).
func ParseResultHeader(raw []byte) (payload []byte, ok bool) {
	if len(raw) <= 8 {
		return nil, true
	}
	l := int32(raw[0]) | int32(raw[1])<<8 | int32(raw[2])<<16 | int32(raw[3])<<24
	total := int(l)
	if total <= 8 {
		return nil, true
	}
	if len(raw) < total {
		return nil, false
	}
	return raw[8:total], true
}
