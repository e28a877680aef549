package table

import "testing"

func TestScopeClosesExactlyTrackedIDs(t *testing.T) {
	tb := New()
	a := tb.Allocate("a", KindValue)
	b := tb.Allocate("b", KindValue)
	untracked := tb.Allocate("c", KindValue)

	sc := NewScope(tb)
	sc.Track(a)
	sc.Track(b)
	if sc.Size() != 2 {
		t.Fatalf("size = %d, want 2", sc.Size())
	}
	sc.Close()

	if _, ok := tb.Read(a); ok {
		t.Error("a survived scope close")
	}
	if _, ok := tb.Read(b); ok {
		t.Error("b survived scope close")
	}
	if _, ok := tb.Read(untracked); !ok {
		t.Error("untracked rid was removed by scope close")
	}
}

func TestScopeCloseTwiceIsNoop(t *testing.T) {
	tb := New()
	rid := tb.Allocate("a", KindValue)
	sc := NewScope(tb)
	sc.Track(rid)
	sc.Close()
	sc.Close() // must not panic or double-free
}

func TestTrackOnDisposedScopeErrors(t *testing.T) {
	tb := New()
	sc := NewScope(tb)
	sc.Close()
	if err := sc.Track(tb.Allocate("x", KindValue)); err != ErrScopeDisposed {
		t.Errorf("err = %v, want ErrScopeDisposed", err)
	}
}
