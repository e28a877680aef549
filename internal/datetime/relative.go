// Package datetime implements the multi-language relative and historical
// date parsing std.parse_date depends on (spec §4.4).
package datetime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// unit is one recognized relative time unit, in seconds.
type unit struct {
	seconds int64
}

var units = map[string]unit{
	"second": {1}, "seconds": {1},
	"minute": {60}, "minutes": {60},
	"hour": {3600}, "hours": {3600},
	"day": {86400}, "days": {86400},
	"week": {604800}, "weeks": {604800},
	"month": {2592000}, "months": {2592000},
	"year": {31536000}, "years": {31536000},
}

// englishAgoRE matches "<n> <unit> ago".
var englishAgoRE = regexp.MustCompile(`(?i)^\s*(\d+)\s*(second|minute|hour|day|week|month|year)s?\s*ago\s*$`)

// cjkUnit maps a CJK unit glyph to seconds.
var cjkUnit = map[string]int64{
	"秒": 1, "分": 60, "分钟": 60, "分鐘": 60, "時間": 3600, "时间": 3600, "小时": 3600, "小時": 3600,
	"天": 86400, "日": 86400, "周": 604800, "週": 604800, "月": 2592000, "年": 31536000,
	"시간": 3600, "분": 60, "초": 1, "일": 86400, "주": 604800, "개월": 2592000, "년": 31536000,
}

// cjkAgoRE matches "<n><unit>前" (Chinese/Japanese "ago" suffix) and
// "<n><unit>전" (Korean "ago" suffix).
var cjkAgoRE = regexp.MustCompile(`^\s*(\d+)\s*(秒|分钟|分鐘|時間|时间|小时|小時|分|天|日|周|週|月|年|시간|분|초|일|주|개월|년)\s*(?:前|전)\s*$`)

// ParseRelative recognizes relative phrases in English, Chinese, Japanese,
// and Korean ("3 hours ago", "3小时前", "3時間前", "3시간 전", "yesterday",
// "just now") and returns seconds-since-epoch computed against now. ok is
// false if s is not a recognized relative phrase.
func ParseRelative(s string, now time.Time) (int64, bool) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)

	switch lower {
	case "just now", "now", "たった今", "방금", "刚刚", "剛剛":
		return now.Unix(), true
	case "yesterday", "昨天", "昨日", "어제":
		return now.AddDate(0, 0, -1).Unix(), true
	case "tomorrow", "明天", "明日", "내일":
		return now.AddDate(0, 0, 1).Unix(), true
	}

	if m := englishAgoRE.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		u, ok := units[strings.ToLower(m[2])]
		if !ok {
			u, ok = units[strings.ToLower(m[2])+"s"]
			if !ok {
				return 0, false
			}
		}
		return now.Unix() - n*u.seconds, true
	}

	// "3시간 전" carries a space before 전; strip it before matching.
	compact := strings.ReplaceAll(trimmed, " ", "")
	if m := cjkAgoRE.FindStringSubmatch(compact); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		secs, ok := cjkUnit[m[2]]
		if !ok {
			return 0, false
		}
		return now.Unix() - n*secs, true
	}

	return 0, false
}
