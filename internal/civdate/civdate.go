package civdate

import (
	"errors"
	"fmt"
	"time"
)

// The whole system runs on Hong Kong civil time. Date keys must come out
// the same whether they are computed by the API server, the sweep job, or
// a test running on a UTC host, so the offset is fixed rather than loaded
// from the host's zone database.
const (
	zoneName    = "HKT"
	offsetHours = 8
)

// Zone is the fixed civil timezone all date keys are anchored to.
var Zone = time.FixedZone(zoneName, offsetHours*60*60)

// ErrInvalidDate is returned for malformed date keys or timestamps.
var ErrInvalidDate = errors.New("invalid date")

const keyLayout = "2006-01-02"

// DateKey is a canonical YYYY-MM-DD civil date. Lexicographic comparison
// of the fixed-width string matches chronological order.
type DateKey string

// Of converts any timestamp to the date key it falls on in the fixed zone.
func Of(t time.Time) DateKey {
	return DateKey(t.In(Zone).Format(keyLayout))
}

// Parse validates a raw string as a date key.
func Parse(raw string) (DateKey, error) {
	t, err := time.ParseInLocation(keyLayout, raw, Zone)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return DateKey(t.Format(keyLayout)), nil
}

// Time returns midnight of the date key in the fixed zone.
func (d DateKey) Time() (time.Time, error) {
	t, err := time.ParseInLocation(keyLayout, string(d), Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, string(d))
	}
	return t, nil
}

// AddDays shifts a date key by n civil days (n may be negative).
func AddDays(d DateKey, n int) (DateKey, error) {
	t, err := d.Time()
	if err != nil {
		return "", err
	}
	return Of(t.AddDate(0, 0, n)), nil
}

// Compare returns -1, 0 or 1. Both keys are fixed-width, so string order
// is date order.
func Compare(a, b DateKey) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// DaysBetween returns the number of whole civil days from a to b
// (negative when b is before a).
func DaysBetween(a, b DateKey) (int, error) {
	ta, err := a.Time()
	if err != nil {
		return 0, err
	}
	tb, err := b.Time()
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// Compose builds the instant whose wall-clock reading in the fixed zone is
// exactly the given date, hour and minute. The civil fields are combined
// with the fixed offset in a single conversion; composing a UTC-labelled
// string first and then subtracting the offset shifts the instant twice.
func Compose(d DateKey, hour, minute int) (time.Time, error) {
	t, err := d.Time()
	if err != nil {
		return time.Time{}, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: time %02d:%02d", ErrInvalidDate, hour, minute)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, Zone), nil
}

// Today is the current date key in the fixed zone, regardless of where the
// process runs. Callers that need determinism pass their own now.
func Today(now time.Time) DateKey {
	return Of(now)
}
