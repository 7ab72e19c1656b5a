package fetch

import (
	"strconv"
	"strings"
	"time"
)

// Canonical intervals accepted across all sources.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"1d":  24 * time.Hour,
}

var barsPerDay = map[string]int{
	"1m":  1440,
	"5m":  288,
	"15m": 96,
	"30m": 48,
	"1h":  24,
	"1d":  1,
}

// intervalDuration maps a canonical interval string to its duration,
// defaulting to 5m for anything unrecognized.
func intervalDuration(interval string) time.Duration {
	if d, ok := intervalDurations[interval]; ok {
		return d
	}
	return 5 * time.Minute
}

// periodDays parses a lookback period like "2d" into whole days,
// defaulting to 1.
func periodDays(period string) int {
	if strings.HasSuffix(period, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(period, "d")); err == nil && days > 0 {
			return days
		}
	}
	return 1
}

// barCount returns how many bars cover the requested period at the
// requested interval, capped to keep within exchange response limits.
func barCount(interval, period string, cap int) int {
	per, ok := barsPerDay[interval]
	if !ok {
		per = 288
	}
	n := per * periodDays(period)
	if cap > 0 && n > cap {
		return cap
	}
	return n
}
