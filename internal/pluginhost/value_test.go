package pluginhost

import (
	"testing"

	"github.com/goatkit/sourcehost/internal/postcard"
)

func TestValueEncodedBufferString(t *testing.T) {
	v := &Value{Kind: KindString, S: "hello"}
	buf, ok := v.encodedBuffer(nil)
	if !ok {
		t.Fatal("encodedBuffer() ok = false, want true for a string value")
	}
	s, ok := postcard.NewDecoder(buf).String()
	if !ok || s != "hello" {
		t.Fatalf("decoded string = %q, ok=%v, want %q", s, ok, "hello")
	}
}

func TestValueEncodedBufferArrayResolvesElements(t *testing.T) {
	strs := map[int32]string{1: "a", 2: "b"}
	resolve := func(rid int32) (string, bool) {
		s, ok := strs[rid]
		return s, ok
	}

	v := &Value{Kind: KindArray, Arr: []int32{1, 2}}
	buf, ok := v.encodedBuffer(resolve)
	if !ok {
		t.Fatal("encodedBuffer() ok = false, want true when every element resolves")
	}
	got, ok := postcard.NewDecoder(buf).VecStrings()
	if !ok {
		t.Fatal("decoded vec of strings failed")
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("decoded = %v, want [a b]", got)
	}
}

func TestValueEncodedBufferArrayUnresolvableElementFails(t *testing.T) {
	resolve := func(rid int32) (string, bool) { return "", false }
	v := &Value{Kind: KindArray, Arr: []int32{99}}
	if _, ok := v.encodedBuffer(resolve); ok {
		t.Fatal("encodedBuffer() ok = true, want false when an element rid doesn't resolve")
	}
}

func TestValueEncodedBufferBytesKindPassesThrough(t *testing.T) {
	v := &Value{Kind: KindBytes, Bytes: []byte("raw")}
	buf, ok := v.encodedBuffer(nil)
	if !ok || string(buf) != "raw" {
		t.Fatalf("encodedBuffer() = %q, ok=%v, want %q", buf, ok, "raw")
	}
}

func TestValueEncodedBufferUnsupportedKindFails(t *testing.T) {
	v := &Value{Kind: KindInt, I: 42}
	if _, ok := v.encodedBuffer(nil); ok {
		t.Fatal("encodedBuffer() ok = true, want false for a plain int value with no Bytes fallback")
	}
}

func TestOpportunisticReadString(t *testing.T) {
	e := postcard.NewEncoder()
	e.String("settings-value")
	s, hasString, _, hasInt, _, hasFloat, _, hasBool := opportunisticRead(e.Bytes())
	if !hasString || s != "settings-value" {
		t.Fatalf("opportunisticRead string = %q, hasString=%v, want %q", s, hasString, "settings-value")
	}
	if hasInt || hasFloat || hasBool {
		t.Fatal("expected only the string slot to be populated")
	}
}

func TestOpportunisticReadInt(t *testing.T) {
	e := postcard.NewEncoder()
	e.Int(7)
	_, hasString, i, hasInt, _, hasFloat, _, hasBool := opportunisticRead(e.Bytes())
	if hasString || hasFloat || hasBool {
		t.Fatal("expected only the int slot to be populated")
	}
	if !hasInt || i != 7 {
		t.Fatalf("opportunisticRead int = %d, hasInt=%v, want 7", i, hasInt)
	}
}

func TestOpportunisticReadSingleByteBool(t *testing.T) {
	// 0x80 alone is a truncated varint (continuation bit set, no
	// following byte), so neither String nor Int can decode it and the
	// single-byte bool fallback applies.
	_, hasString, _, hasInt, _, hasFloat, b, hasBool := opportunisticRead([]byte{0x80})
	if hasString || hasInt || hasFloat {
		t.Fatal("expected only the bool slot to be populated for a lone undecodable byte")
	}
	if !hasBool || !b {
		t.Fatalf("opportunisticRead bool = %v, hasBool=%v, want true", b, hasBool)
	}
}

func TestOpportunisticReadUnparsableFallsThroughToNothing(t *testing.T) {
	// Two truncated-varint bytes: too short for String/Int (no terminating
	// byte) and too short for F32 (needs 4 bytes), and not a length-1
	// buffer or a parseable decimal string either.
	_, hasString, _, hasInt, _, hasFloat, _, hasBool := opportunisticRead([]byte{0x80, 0x80})
	if hasString || hasInt || hasFloat || hasBool {
		t.Fatal("expected no slot to be populated for bytes matching no known encoding")
	}
}
