package datetime

import (
	"strings"
	"time"
)

// historicalLayouts are the token formats ParseDate tries after the
// caller's format; the ISO/RFC layouts at the end of the list are the
// native ISO/RFC fallback. format, when non-empty, is tried first
// as a Go reference-time layout (the caller is expected to have already
// translated any foreign token syntax into Go's layout tokens upstream;
// this package only recognizes the common layouts plugins actually send).
var historicalLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006/01/02",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC822,
	time.RFC822Z,
	time.RFC3339,
}

// resolveLocation turns the spec's two timezone specials into a
// time.Location: "UTC" forces offset zero, "current" means local time.
// Any other non-empty string is tried as an IANA zone name, falling back
// to UTC if unrecognized.
func resolveLocation(timezone string) *time.Location {
	switch timezone {
	case "", "UTC":
		return time.UTC
	case "current":
		return time.Local
	}
	if loc, err := time.LoadLocation(timezone); err == nil {
		return loc
	}
	return time.UTC
}

// ParseDate implements std.parse_date (spec §4.4): relative phrases first,
// then the supplied format (if any) as a Go layout, then the fixed
// historicalLayouts list, whose last entries are the ISO/RFC layouts.
// Returns seconds since epoch.
func ParseDate(value, format, locale, timezone string) (int64, bool) {
	now := time.Now().UTC()
	if secs, ok := ParseRelative(value, now); ok {
		return secs, true
	}

	loc := resolveLocation(timezone)
	_ = normalizeLocale(locale) // resolved for future locale-specific month/weekday tables; historicalLayouts below are locale-invariant

	trimmed := strings.TrimSpace(value)

	if format != "" {
		if t, err := time.ParseInLocation(format, trimmed, loc); err == nil {
			return t.Unix(), true
		}
	}

	for _, layout := range historicalLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t.Unix(), true
		}
	}

	return 0, false
}
