package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var eastern *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("load eastern timezone: %v", err))
	}
	eastern = loc
}

// Eastern returns the exchange timezone shared by every time gate in the system.
func Eastern() *time.Location { return eastern }

// ET converts a timestamp into exchange time.
func ET(t time.Time) time.Time { return t.In(eastern) }

// ETDate returns the exchange-time calendar date, used for day-rollover detection.
func ETDate(t time.Time) string { return t.In(eastern).Format("2006-01-02") }

// TodaysExpiry returns the same-day option expiration date for a timestamp.
func TodaysExpiry(t time.Time) string { return ETDate(t) }

// MinuteOfDay returns minutes since midnight exchange time.
func MinuteOfDay(t time.Time) int {
	et := t.In(eastern)
	return et.Hour()*60 + et.Minute()
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hh*60 + mm, nil
}

// ClockWindow is an inclusive intraday range in minutes since midnight ET.
type ClockWindow struct {
	Start int
	End   int
}

// NewClockWindow parses "HH:MM" bounds into a window.
func NewClockWindow(start, end string) (ClockWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return ClockWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return ClockWindow{}, err
	}
	if e < s {
		return ClockWindow{}, fmt.Errorf("window end %s before start %s", end, start)
	}
	return ClockWindow{Start: s, End: e}, nil
}

// Contains reports whether the timestamp falls inside the window.
func (w ClockWindow) Contains(t time.Time) bool {
	m := MinuteOfDay(t)
	return m >= w.Start && m <= w.End
}

// IsOvernightClose reports whether a timestamp sits in the 03:00:00-03:00:30 ET
// band that marks the close of the 12-hour overnight bar.
func IsOvernightClose(t time.Time) bool {
	et := t.In(eastern)
	return et.Hour() == 3 && et.Minute() == 0 && et.Second() < 30
}

// IsBlackout reports whether the timestamp falls in the opening or lunch
// chop windows where signal thresholds tighten.
func IsBlackout(t time.Time) bool {
	m := MinuteOfDay(t)
	return (m >= 9*60+30 && m < 9*60+45) || (m >= 11*60+30 && m < 13*60+30)
}
