// Package cookiejar implements the per-instance, hostname-scoped Set-Cookie
// cache described in spec §3.3: a best-effort cache, not a conformant
// implementation of HTTP cookies (no expiry, no path handling).
package cookiejar

import (
	"net/url"
	"strings"
	"sync"
)

// Jar caches the first name=value token of any Set-Cookie header, keyed by
// "hostname:name".
type Jar struct {
	mu      sync.Mutex
	entries map[string]string // "hostname:name" -> value
}

// New returns an empty jar.
func New() *Jar {
	return &Jar{entries: make(map[string]string)}
}

// StoreSetCookie parses the first name=value token of a Set-Cookie header
// value and stores it keyed by hostname:name.
func (j *Jar) StoreSetCookie(hostname, setCookie string) {
	name, value, ok := firstCookiePair(setCookie)
	if !ok {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[hostname+":"+name] = value
}

func firstCookiePair(setCookie string) (name, value string, ok bool) {
	first := strings.SplitN(setCookie, ";", 2)[0]
	eq := strings.Index(first, "=")
	if eq < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(first[:eq])
	value = strings.TrimSpace(first[eq+1:])
	if name == "" {
		return "", "", false
	}
	return name, value, true
}

// CookieHeaderFor builds the Cookie header value to send with a request to
// rawURL, merging every stored entry whose key's hostname exactly matches
// the request host or is a parent domain of it.
func (j *Jar) CookieHeaderFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()

	j.mu.Lock()
	defer j.mu.Unlock()

	var pairs []string
	for key, value := range j.entries {
		parts := strings.SplitN(key, ":", 2)
		if len(parts) != 2 {
			continue
		}
		jarHost, name := parts[0], parts[1]
		if hostMatches(host, jarHost) {
			pairs = append(pairs, name+"="+value)
		}
	}
	return strings.Join(pairs, "; ")
}

// hostMatches reports whether jarHost is host itself or a parent domain of
// host (e.g. jarHost "x.y" matches host "sub.x.y").
func hostMatches(host, jarHost string) bool {
	if host == jarHost {
		return true
	}
	return strings.HasSuffix(host, "."+jarHost)
}

// MergeWithExplicit prepends stored cookies to an explicit Cookie header
// value the request already carries (spec §4.5: "stored cookies prepend
// any explicit Cookie header").
func (j *Jar) MergeWithExplicit(rawURL, explicit string) string {
	stored := j.CookieHeaderFor(rawURL)
	switch {
	case stored == "":
		return explicit
	case explicit == "":
		return stored
	default:
		return stored + "; " + explicit
	}
}

// Len reports the number of cached cookie entries, for metrics.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
