package abierr

import "testing"

func TestMessageKnownCode(t *testing.T) {
	if got := Registry.Message("net", NetMissingURL); got != "missing url" {
		t.Errorf("got %q", got)
	}
}

func TestMessageUnknownCodeFallsBack(t *testing.T) {
	got := Registry.Message("net", -999)
	if got == "" {
		t.Error("expected a non-empty fallback message")
	}
}
