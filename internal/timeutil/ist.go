package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30)
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback: create fixed zone if Asia/Kolkata not available
		IST = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Common layouts for IST formatting
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)

// Now returns the current time in IST
func Now() time.Time {
	return time.Now().In(IST)
}

// FormatIST formats a time in IST using the given layout
func FormatIST(t time.Time, layout string) string {
	return t.In(IST).Format(layout)
}

// StartOfDay returns 00:00:00 IST of the day containing t
func StartOfDay(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
}

// EndOfDay returns the last nanosecond of the IST day containing t
func EndOfDay(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 23, 59, 59, 999999999, IST)
}

// ParseTime accepts a YYYY-MM-DD date (read as an IST calendar day) or an RFC 3339 timestamp.
// isDate reports which form was given.
func ParseTime(value string) (t time.Time, isDate bool, err error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseInLocation(DateLayout, value, IST); err == nil {
		return d, true, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC 3339", value)
}

// ParseDateRange turns from/to query values into an inclusive range. Plain dates cover whole
// IST days. Both empty means today; one empty means the same day as the other.
func ParseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	fromStr, toStr = strings.TrimSpace(fromStr), strings.TrimSpace(toStr)
	if fromStr == "" && toStr == "" {
		now := Now()
		return StartOfDay(now), EndOfDay(now), nil
	}
	if fromStr == "" {
		fromStr = toStr
	}
	if toStr == "" {
		toStr = fromStr
	}

	from, fromIsDate, err := ParseTime(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, toIsDate, err := ParseTime(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if fromIsDate {
		from = StartOfDay(from)
	}
	if toIsDate {
		to = EndOfDay(to)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from, to, nil
}
