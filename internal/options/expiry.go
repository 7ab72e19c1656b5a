package options

import (
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// NextWeeklyExpiry returns the next occurrence of the named weekday
// strictly after now's date. When today is the target weekday the expiry
// rolls a full week forward (always forward, never same-day), so the
// result is always 1 to 7 days ahead. Unrecognized names fall back to
// Thursday.
func NextWeeklyExpiry(now time.Time, weekday string) time.Time {
	target, ok := weekdayNames[strings.ToLower(weekday)]
	if !ok {
		target = time.Thursday
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	daysAhead := int(target - today.Weekday())
	if daysAhead <= 0 {
		daysAhead += 7
	}
	return today.AddDate(0, 0, daysAhead)
}

// expiryCode formats an expiry date as the DDMMMYY instrument-name code
// used by the exchange (e.g. 25DEC20).
func expiryCode(expiry time.Time) string {
	return strings.ToUpper(expiry.Format("02Jan06"))
}
