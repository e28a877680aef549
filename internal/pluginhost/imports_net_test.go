package pluginhost

import (
	"context"
	"testing"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/table"
)

func TestNetReadDataRejectsOversizedRequest(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	rid := inst.table.Allocate(&netRequest{sent: true, respBody: []byte("ab")}, table.KindRequest)

	code := inst.netReadData(ctx, nil, rid, 0, 3)
	if code != abierr.NetInvalidBufferSize {
		t.Fatalf("netReadData() = %d, want NetInvalidBufferSize (%d)", code, abierr.NetInvalidBufferSize)
	}
}

func TestNetReadDataAcceptsExactSize(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	rid := inst.table.Allocate(&netRequest{sent: true, respBody: []byte("payload")}, table.KindRequest)

	if code := inst.netReadData(ctx, nil, rid, 0, 7); code != 0 {
		t.Fatalf("netReadData() exact size = %d, want 0", code)
	}
	got, ok := inst.memory.Read(0, 7)
	if !ok || string(got) != "payload" {
		t.Fatalf("memory at 0 = %q, ok=%v, want %q", got, ok, "payload")
	}
}

func TestNetReadDataMissingResponse(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	rid := inst.table.Allocate(&netRequest{sent: false}, table.KindRequest)
	if code := inst.netReadData(ctx, nil, rid, 0, 0); code != abierr.NetMissingResponse {
		t.Fatalf("netReadData() on unsent request = %d, want NetMissingResponse (%d)", code, abierr.NetMissingResponse)
	}
}

func TestNetMethodIndexMapping(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	cases := []struct {
		index int32
		want  string
	}{
		{0, "GET"}, {1, "POST"}, {2, "PUT"}, {3, "HEAD"}, {4, "DELETE"},
		{5, "PATCH"}, {6, "OPTIONS"}, {7, "CONNECT"}, {8, "TRACE"},
		{9, "GET"}, {-1, "GET"},
	}
	for _, c := range cases {
		rid := inst.netInit(ctx, nil, c.index)
		r, ok := inst.netRequestAt(rid)
		if !ok {
			t.Fatalf("netInit(%d): request not found", c.index)
		}
		if r.method != c.want {
			t.Errorf("netInit(%d) method = %q, want %q", c.index, r.method, c.want)
		}
	}
}
