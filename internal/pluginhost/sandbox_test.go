package pluginhost

import (
	"testing"
	"time"
)

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "anything.example.com", true},
		{"*.example.com", "api.example.com", true},
		{"*.example.com", "example.com", true},
		{"*.example.com", "notexample.com", false},
		{"api.example.com", "api.example.com", true},
		{"api.example.com", "other.example.com", false},
	}
	for _, c := range cases {
		if got := globMatch(c.pattern, c.s); got != c.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestResourcePolicyAllowsHost(t *testing.T) {
	p := ResourcePolicy{AllowedHosts: []string{"*.example.com", "literal.org"}}
	if !p.AllowsHost("https://api.example.com/v1") {
		t.Error("expected subdomain of example.com to be allowed")
	}
	if !p.AllowsHost("https://literal.org/") {
		t.Error("expected literal.org to be allowed")
	}
	if p.AllowsHost("https://evil.com/") {
		t.Error("expected evil.com to be rejected")
	}
	if p.AllowsHost("://not a url") {
		t.Error("expected an unparseable URL to be rejected")
	}
}

func TestResourcePolicyAllowsSettingsKey(t *testing.T) {
	p := ResourcePolicy{AllowedSettingsKeys: []string{"ui.*", "cache_key"}}
	if !p.AllowsSettingsKey("cache_key") {
		t.Error("expected literal match to be allowed")
	}
	if p.AllowsSettingsKey("secret.token") {
		t.Error("expected non-matching key to be rejected")
	}
}

func TestRateLimiterEnforcesWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Hour)
	if !rl.allow() || !rl.allow() {
		t.Fatal("expected first two requests to be allowed")
	}
	if rl.allow() {
		t.Fatal("expected third request within the window to be denied")
	}
}

func TestRateLimiterUnlimitedWhenZero(t *testing.T) {
	rl := newRateLimiter(0, time.Hour)
	for i := 0; i < 100; i++ {
		if !rl.allow() {
			t.Fatal("expected an unlimited limiter to always allow")
		}
	}
}

func TestSandboxAllowRequestTalliesStats(t *testing.T) {
	sb := NewSandbox(ResourcePolicy{
		PluginName:           "test",
		AllowedHosts:         []string{"*.allowed.com"},
		MaxRequestsPerMinute: 1,
	})

	if !sb.AllowRequest("https://api.allowed.com/x") {
		t.Fatal("expected first request to an allowed host to pass")
	}
	if sb.AllowRequest("https://blocked.com/x") {
		t.Fatal("expected a disallowed host to be rejected")
	}
	if sb.AllowRequest("https://api.allowed.com/y") {
		t.Fatal("expected the rate limit to reject the second allowed request")
	}

	stats := sb.Stats("test")
	if stats.HTTPRequests != 1 {
		t.Errorf("HTTPRequests = %d, want 1", stats.HTTPRequests)
	}
	if stats.BlockedHosts != 2 {
		t.Errorf("BlockedHosts = %d, want 2", stats.BlockedHosts)
	}
}

func TestSandboxAllowSettingsKey(t *testing.T) {
	sb := NewSandbox(ResourcePolicy{AllowedSettingsKeys: []string{"public.*"}})
	if !sb.AllowSettingsKey("public.theme", false) {
		t.Error("expected a matching settings key to be allowed")
	}
	if sb.AllowSettingsKey("private.token", true) {
		t.Error("expected a non-matching settings key to be rejected")
	}
	stats := sb.Stats("x")
	if stats.SettingsReads != 1 {
		t.Errorf("SettingsReads = %d, want 1", stats.SettingsReads)
	}
}

func TestSandboxUpdatePolicyTakesEffectImmediately(t *testing.T) {
	sb := NewSandbox(ResourcePolicy{AllowedHosts: []string{"a.com"}})
	if sb.AllowRequest("https://b.com/") {
		t.Fatal("expected b.com to be rejected under the initial policy")
	}
	sb.UpdatePolicy(ResourcePolicy{AllowedHosts: []string{"b.com"}})
	if !sb.AllowRequest("https://b.com/") {
		t.Fatal("expected b.com to be allowed after the policy update")
	}
}

func TestSandboxRecordCall(t *testing.T) {
	sb := NewSandbox(DefaultResourcePolicy("x"))
	sb.RecordCall(nil)
	sb.RecordCall(errTest{})
	stats := sb.Stats("x")
	if stats.Calls != 2 {
		t.Errorf("Calls = %d, want 2", stats.Calls)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.LastCallAt == 0 {
		t.Error("expected LastCallAt to be recorded")
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
