// Package markethours provides NSE session-time helpers: the IST zone,
// holiday calendar, and HH:MM time-of-day windows used by the entry gate
// and the timed exit rules.
package markethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Market hours in IST
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// MinuteOfDay is a time of day expressed as minutes since midnight IST.
type MinuteOfDay int

// ParseHHMM parses a settings time string like "15:10" into a MinuteOfDay.
func ParseHHMM(s string) (MinuteOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("markethours: invalid HH:MM %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("markethours: invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("markethours: invalid minute in %q", s)
	}
	return MinuteOfDay(hh*60 + mm), nil
}

// MustHHMM is ParseHHMM for compile-time-known defaults; panics on error.
func MustHHMM(s string) MinuteOfDay {
	m, err := ParseHHMM(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Minute converts t (in IST) to its MinuteOfDay.
func Minute(t time.Time) MinuteOfDay {
	ist := t.In(IST)
	return MinuteOfDay(ist.Hour()*60 + ist.Minute())
}

// Within reports whether t falls inside [start, end] inclusive.
func Within(t time.Time, start, end MinuteOfDay) bool {
	m := Minute(t)
	return m >= start && m <= end
}

// IsMarketOpen returns true if t falls within NSE trading hours
// (9:15 AM – 3:30 PM IST, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	return Within(t, MinuteOfDay(OpenHour*60+OpenMinute), MinuteOfDay(CloseHour*60+CloseMinute-1))
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	wd := ist.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !IsHoliday(ist)
}

// StatusString returns a human-readable market status for the state feed.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return "Market Open"
	}
	return "Market Closed"
}
