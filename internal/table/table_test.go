package table

import "testing"

func TestAllocateIsMonotonicAndNeverReused(t *testing.T) {
	tb := New()
	var ids []int32
	for i := 0; i < 5; i++ {
		ids = append(ids, tb.Allocate(i, KindValue))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not strictly increasing: %v", ids)
		}
	}
	tb.ForceRemove(ids[2])
	newID := tb.Allocate("x", KindValue)
	for _, id := range ids {
		if newID == id {
			t.Fatalf("reused id %d after removal", id)
		}
	}
}

func TestRetainReleaseBalance(t *testing.T) {
	tb := New()
	rid := tb.Allocate("v", KindValue)
	tb.Retain(rid)
	tb.Retain(rid)
	tb.Release(rid)
	tb.Release(rid)
	if _, ok := tb.Read(rid); !ok {
		t.Fatal("entry disappeared before refcount reached zero")
	}
	tb.Release(rid)
	if _, ok := tb.Read(rid); ok {
		t.Fatal("entry survived final release")
	}
}

func TestDestroyRemovesAnyKind(t *testing.T) {
	tb := New()
	rid := tb.Allocate(nil, KindCanvasContext)
	if !tb.Destroy(rid) {
		t.Fatal("destroy reported false for a present rid")
	}
	if _, ok := tb.Read(rid); ok {
		t.Fatal("entry survived destroy")
	}
	if tb.Destroy(rid) {
		t.Fatal("destroy reported true for an already-removed rid")
	}
}

func TestForceRemoveIgnoresRefcount(t *testing.T) {
	tb := New()
	rid := tb.Allocate("v", KindValue)
	tb.Retain(rid)
	tb.Retain(rid)
	if !tb.ForceRemove(rid) {
		t.Fatal("force-remove reported false")
	}
	if _, ok := tb.Read(rid); ok {
		t.Fatal("entry survived force-remove despite outstanding refcount")
	}
}

func TestUpdateReplacesPayloadInPlace(t *testing.T) {
	tb := New()
	rid := tb.Allocate("before", KindValue)
	if !tb.Update(rid, "after") {
		t.Fatal("update reported false")
	}
	got, _ := tb.Read(rid)
	if got != "after" {
		t.Errorf("got %v, want %q", got, "after")
	}
}
