package timeprefix

import (
	"strings"
	"time"
)

// Unit is the granularity a prefix ends at.
type Unit string

const (
	UnitSecond     Unit = "second"
	UnitTenSeconds Unit = "ten_seconds"
	UnitMinute     Unit = "minute"
	UnitTenMinutes Unit = "ten_minutes"
	UnitHour       Unit = "hour"
	UnitTenHours   Unit = "ten_hours"
	UnitDay        Unit = "day"
	UnitTenDays    Unit = "ten_days"
	UnitMonth      Unit = "month"
	UnitMonthTens0 Unit = "month_tens_0"
	UnitMonthTens1 Unit = "month_tens_1"
	UnitYear       Unit = "year"
	UnitDecade     Unit = "decade"
	UnitCentury    Unit = "century"
	UnitMillennium Unit = "millennium"
)

// successorRule pairs a test on the prefix text with the unit it implies.
type successorRule struct {
	match   func(s string) bool
	unit    Unit
	advance func(c time.Time) time.Time
}

// successorRules are tried top to bottom; the first match wins. Shapes use
// 'd' for any digit, every other byte is literal.
var successorRules = []successorRule{
	{endsWith(":dd:dd"), UnitSecond, addClock(0, 0, 1)},
	{endsWith(":dd:d"), UnitTenSeconds, addClock(0, 0, 10)},
	{endsWith(":dd"), UnitMinute, addClock(0, 1, 0)},
	{endsWith(":d"), UnitTenMinutes, addClock(0, 10, 0)},
	{endsWith("Tdd"), UnitHour, addClock(1, 0, 0)},
	{endsWith("Td"), UnitTenHours, addClock(10, 0, 0)},
	{endsWith("-dd-dd"), UnitDay, addDate(0, 0, 1)},
	{endsWith("-dd-d"), UnitTenDays, addDate(0, 0, 10)},
	{endsWith("-dd"), UnitMonth, addDate(0, 1, 0)},
	// "-0" covers months 01-09. Jumping to October keeps the day and clock
	// of the completed time, which are always the 1st at midnight here.
	{endsWith("-0"), UnitMonthTens0, func(c time.Time) time.Time {
		return time.Date(c.Year(), time.October, c.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
	}},
	{endsWith("-1"), UnitMonthTens1, newYear(1)},
	{func(s string) bool { return is(s, "dddd") || is(s, "dddd-") }, UnitYear, newYear(1)},
	{isShape("ddd"), UnitDecade, newYear(10)},
	{isShape("dd"), UnitCentury, newYear(100)},
	{isShape("d"), UnitMillennium, newYear(1000)},
}

// Granularity returns the unit of the first successor rule matching p.
func Granularity(p Prefix) (Unit, error) {
	r, ok := findRule(p)
	if !ok {
		return "", &ParseError{Kind: NoGranularity, Value: string(p), Expected: ExampleFormat}
	}
	return r.unit, nil
}

// Successor returns the earliest instant after every timestamp that p
// denotes, reading p as local time in loc. The arithmetic is done on the
// wall clock and only then placed in loc.
func Successor(p Prefix, loc *time.Location) (time.Time, error) {
	c, err := civil(p)
	if err != nil {
		return time.Time{}, err
	}
	r, ok := findRule(p)
	if !ok {
		return time.Time{}, &ParseError{Kind: NoGranularity, Value: string(p), Expected: ExampleFormat}
	}
	return inLocation(r.advance(c), loc), nil
}

func findRule(p Prefix) (successorRule, bool) {
	s := trimSeparator(string(p))
	for _, r := range successorRules {
		if r.match(s) {
			return r, true
		}
	}
	return successorRule{}, false
}

// trimSeparator drops one trailing field separator, so "2022-11-" is read
// like "2022-11". A bare "YYYY-" keeps its dash since the year rule lists it.
func trimSeparator(s string) string {
	if len(s) <= 5 {
		return s
	}
	if strings.ContainsRune("-T:", rune(s[len(s)-1])) {
		return s[:len(s)-1]
	}
	return s
}

func endsWith(shape string) func(string) bool {
	return func(s string) bool {
		return len(s) >= len(shape) && is(s[len(s)-len(shape):], shape)
	}
}

func isShape(shape string) func(string) bool {
	return func(s string) bool { return is(s, shape) }
}

// is reports whether s has exactly the given shape.
func is(s, shape string) bool {
	if len(s) != len(shape) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if shape[i] == 'd' {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		} else if s[i] != shape[i] {
			return false
		}
	}
	return true
}

func addClock(hours, minutes, seconds int) func(time.Time) time.Time {
	return func(c time.Time) time.Time {
		return time.Date(c.Year(), c.Month(), c.Day(), c.Hour()+hours, c.Minute()+minutes, c.Second()+seconds, 0, time.UTC)
	}
}

func addDate(years, months, days int) func(time.Time) time.Time {
	return func(c time.Time) time.Time {
		return c.AddDate(years, months, days)
	}
}

func newYear(years int) func(time.Time) time.Time {
	return func(c time.Time) time.Time {
		return time.Date(c.Year()+years, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
}
