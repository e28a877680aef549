package pluginhost

import (
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ResourcePolicy bounds what one plugin instance's net and defaults imports
// may reach: an allow-list of outbound HTTP host patterns and of settings
// key patterns, plus a request-rate ceiling. It is the pluginhost
// counterpart of the host-API sandbox's per-plugin resource policy,
// redesigned around this host's actual attack surface (outbound HTTP and
// settings storage, not a SQL database).
type ResourcePolicy struct {
	PluginName string

	// AllowedHosts lists hostname patterns net.send may target ("*"
	// matches everything; "*.example.com" matches subdomains).
	AllowedHosts []string

	// AllowedSettingsKeys lists settings-key glob patterns defaults.get
	// and defaults.set may touch ("*" matches everything).
	AllowedSettingsKeys []string

	MaxRequestsPerMinute int
}

// DefaultResourcePolicy grants unrestricted access, matching an installed
// plugin's default trust level until an operator narrows it.
func DefaultResourcePolicy(name string) ResourcePolicy {
	return ResourcePolicy{
		PluginName:           name,
		AllowedHosts:         []string{"*"},
		AllowedSettingsKeys:  []string{"*"},
		MaxRequestsPerMinute: 120,
	}
}

// globMatch reports whether pattern (a single optional leading "*.", or a
// bare "*", or a literal) matches s.
func globMatch(pattern, s string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*."):
		suffix := pattern[1:] // ".example.com"
		return strings.HasSuffix(s, suffix) || s == pattern[2:]
	default:
		return pattern == s
	}
}

// AllowsHost reports whether rawURL's host is permitted by policy.
func (p ResourcePolicy) AllowsHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, pat := range p.AllowedHosts {
		if globMatch(pat, host) {
			return true
		}
	}
	return false
}

// AllowsSettingsKey reports whether key is permitted by policy.
func (p ResourcePolicy) AllowsSettingsKey(key string) bool {
	for _, pat := range p.AllowedSettingsKeys {
		if globMatch(pat, key) {
			return true
		}
	}
	return false
}

// rateLimiter is a simple sliding-window limiter, one per sandboxed
// instance, guarding the volume of outbound requests a plugin can issue.
type rateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	tokens []time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{max: max, window: window, tokens: make([]time.Time, 0, max)}
}

func (r *rateLimiter) allow() bool {
	if r.max <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)
	valid := 0
	for _, t := range r.tokens {
		if t.After(cutoff) {
			r.tokens[valid] = t
			valid++
		}
	}
	r.tokens = r.tokens[:valid]

	if len(r.tokens) >= r.max {
		return false
	}
	r.tokens = append(r.tokens, now)
	return true
}

// Sandbox enforces a ResourcePolicy around one Instance's net and defaults
// imports, and tallies resource usage for StatsSnapshot reporting.
type Sandbox struct {
	policyMu sync.RWMutex
	policy   *ResourcePolicy

	requests *rateLimiter
	stats    SandboxStats
}

// SandboxStats tracks resource usage for one plugin instance.
type SandboxStats struct {
	HTTPRequests  atomic.Int64
	BlockedHosts  atomic.Int64
	SettingsReads atomic.Int64
	SettingsWrite atomic.Int64
	Calls         atomic.Int64
	Errors        atomic.Int64
	LastCallAt    atomic.Int64 // unix millis
}

// StatsSnapshot is a point-in-time copy of SandboxStats.
type StatsSnapshot struct {
	PluginName    string `json:"plugin_name"`
	HTTPRequests  int64  `json:"http_requests"`
	BlockedHosts  int64  `json:"blocked_hosts"`
	SettingsReads int64  `json:"settings_reads"`
	SettingsWrite int64  `json:"settings_writes"`
	Calls         int64  `json:"calls"`
	Errors        int64  `json:"errors"`
	LastCallAt    int64  `json:"last_call_at"`
}

// NewSandbox returns a Sandbox enforcing policy.
func NewSandbox(policy ResourcePolicy) *Sandbox {
	return &Sandbox{
		policy:   &policy,
		requests: newRateLimiter(policy.MaxRequestsPerMinute, time.Minute),
	}
}

// UpdatePolicy swaps in a new policy, taking effect immediately.
func (s *Sandbox) UpdatePolicy(policy ResourcePolicy) {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	s.policy = &policy
	s.requests = newRateLimiter(policy.MaxRequestsPerMinute, time.Minute)
}

func (s *Sandbox) currentPolicy() ResourcePolicy {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	return *s.policy
}

// AllowRequest reports whether a net.send to rawURL is permitted, tallying
// the outcome either way.
func (s *Sandbox) AllowRequest(rawURL string) bool {
	policy := s.currentPolicy()
	if !policy.AllowsHost(rawURL) {
		s.stats.BlockedHosts.Add(1)
		globalMetrics().reportBlockedRequest(policy.PluginName)
		return false
	}
	if !s.requests.allow() {
		s.stats.BlockedHosts.Add(1)
		globalMetrics().reportBlockedRequest(policy.PluginName)
		return false
	}
	s.stats.HTTPRequests.Add(1)
	return true
}

// AllowSettingsKey reports whether a defaults.get/set on key is permitted.
func (s *Sandbox) AllowSettingsKey(key string, write bool) bool {
	if !s.currentPolicy().AllowsSettingsKey(key) {
		return false
	}
	if write {
		s.stats.SettingsWrite.Add(1)
	} else {
		s.stats.SettingsReads.Add(1)
	}
	return true
}

// RecordCall tallies one dispatcher call, successful or not.
func (s *Sandbox) RecordCall(err error) {
	s.stats.Calls.Add(1)
	s.stats.LastCallAt.Store(time.Now().UnixMilli())
	if err != nil {
		s.stats.Errors.Add(1)
	}
}

// Stats returns a point-in-time snapshot.
func (s *Sandbox) Stats(name string) StatsSnapshot {
	return StatsSnapshot{
		PluginName:    name,
		HTTPRequests:  s.stats.HTTPRequests.Load(),
		BlockedHosts:  s.stats.BlockedHosts.Load(),
		SettingsReads: s.stats.SettingsReads.Load(),
		SettingsWrite: s.stats.SettingsWrite.Load(),
		Calls:         s.stats.Calls.Load(),
		Errors:        s.stats.Errors.Load(),
		LastCallAt:    s.stats.LastCallAt.Load(),
	}
}
