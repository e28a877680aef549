package pluginhost

import (
	"context"
	"testing"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/table"
)

func TestStdReadBufferRejectsOversizedRequest(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	rid := inst.table.Allocate(&Value{Kind: KindBytes, Bytes: []byte("hi")}, table.KindValue)

	// size (3) exceeds the buffer's actual length (2): spec §4.4 documents
	// this as an error case, not a panic.
	code := inst.stdReadBuffer(ctx, nil, rid, 0, 3)
	if code != abierr.StdInvalidBufferSize {
		t.Fatalf("stdReadBuffer() = %d, want StdInvalidBufferSize (%d)", code, abierr.StdInvalidBufferSize)
	}
}

func TestStdReadBufferAcceptsExactAndSmallerSize(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	rid := inst.table.Allocate(&Value{Kind: KindBytes, Bytes: []byte("hello")}, table.KindValue)

	if code := inst.stdReadBuffer(ctx, nil, rid, 0, 5); code != 0 {
		t.Fatalf("stdReadBuffer() exact size = %d, want 0", code)
	}
	got, ok := inst.memory.Read(0, 5)
	if !ok || string(got) != "hello" {
		t.Fatalf("memory at 0 = %q, ok=%v, want %q", got, ok, "hello")
	}

	if code := inst.stdReadBuffer(ctx, nil, rid, 10, 3); code != 0 {
		t.Fatalf("stdReadBuffer() smaller size = %d, want 0", code)
	}
	got, ok = inst.memory.Read(10, 3)
	if !ok || string(got) != "hel" {
		t.Fatalf("memory at 10 = %q, ok=%v, want %q", got, ok, "hel")
	}
}

func TestStdReadBufferInvalidDescriptor(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	if code := inst.stdReadBuffer(ctx, nil, 999, 0, 1); code != abierr.StdInvalidDescriptor {
		t.Fatalf("stdReadBuffer() on unknown rid = %d, want StdInvalidDescriptor (%d)", code, abierr.StdInvalidDescriptor)
	}
}
