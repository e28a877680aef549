package postcard

import "testing"

func TestParseResultHeaderEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, {1, 2, 3}, {1, 2, 3, 4, 5, 6, 7, 8}} {
		payload, ok := ParseResultHeader(raw)
		if !ok || payload != nil {
			t.Errorf("ParseResultHeader(% x) = %v, %v; want nil, true", raw, payload, ok)
		}
	}
}

func TestParseResultHeaderPayload(t *testing.T) {
	// total length 11 (8 header + 3 payload bytes), capacity ignored.
	raw := []byte{11, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 'a', 'b', 'c'}
	payload, ok := ParseResultHeader(raw)
	if !ok {
		t.Fatal("expected ok")
	}
	if string(payload) != "abc" {
		t.Errorf("payload = %q, want %q", payload, "abc")
	}
}

func TestParseResultHeaderTruncated(t *testing.T) {
	raw := []byte{20, 0, 0, 0, 0, 0, 0, 0, 'a'}
	if _, ok := ParseResultHeader(raw); ok {
		t.Error("expected truncated header to report not-ok")
	}
}
