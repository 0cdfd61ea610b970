package timeslot

import (
	"fmt"
	"time"
)

// MinutesPerDay is the number of minutes in one day.
const MinutesPerDay = 24 * 60

// Normalizer converts absolute timestamps into the business time zone's
// (weekday, minute-of-day) coordinates. Booking timestamps are real instants
// and must be localized before the weekday or time window is decided;
// rendering a 02:00 local booking in UTC would land it on the previous day.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer loads the business time zone, e.g. "Asia/Ho_Chi_Minh".
func NewNormalizer(timezone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load business timezone %q: %w", timezone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// Location returns the business time zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// LocalMinute converts an instant into the business-local weekday
// (0=Sunday..6=Saturday) and minute of day (0..1439).
func (n *Normalizer) LocalMinute(t time.Time) (weekday int, minuteOfDay int) {
	lt := t.In(n.loc)
	return int(lt.Weekday()), lt.Hour()*60 + lt.Minute()
}

// RawMinuteOfDay reads hour and minute verbatim off the timestamp, without
// any time zone conversion. Pricing rule times are date-agnostic wall-clock
// labels, already "local" by construction; pushing them through a zone
// conversion would corrupt them.
func RawMinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Interval converts a booking's [start, end) into business-local weekday and
// minute coordinates. The end minute is start + duration, so an interval that
// touches midnight yields an end of 1440 rather than wrapping to 0.
func (n *Normalizer) Interval(start, end time.Time) (weekday, startMinute, endMinute int) {
	weekday, startMinute = n.LocalMinute(start)
	endMinute = startMinute + int(end.Sub(start).Minutes())
	return weekday, startMinute, endMinute
}

// At combines a calendar date with a wall-clock time-of-day into an absolute
// instant in the business time zone. Used by the recurring generator to turn
// "every Wednesday at 19:00" into concrete slots.
func (n *Normalizer) At(date time.Time, timeOfDay time.Time) time.Time {
	d := date.In(n.loc)
	return time.Date(d.Year(), d.Month(), d.Day(),
		timeOfDay.Hour(), timeOfDay.Minute(), 0, 0, n.loc)
}
