package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMinute_WeekdayBoundary(t *testing.T) {
	n, err := NewNormalizer("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	// 2024-01-03T19:00:00Z is Wednesday in UTC but already
	// 2024-01-04 02:00 (Thursday) in UTC+7.
	ts := time.Date(2024, 1, 3, 19, 0, 0, 0, time.UTC)

	weekday, minute := n.LocalMinute(ts)
	assert.Equal(t, int(time.Thursday), weekday)
	assert.Equal(t, 2*60, minute)
}

func TestLocalMinute_SameDay(t *testing.T) {
	n, err := NewNormalizer("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	// 2024-01-06T11:30:00Z = 18:30 local, still Saturday.
	ts := time.Date(2024, 1, 6, 11, 30, 0, 0, time.UTC)

	weekday, minute := n.LocalMinute(ts)
	assert.Equal(t, int(time.Saturday), weekday)
	assert.Equal(t, 18*60+30, minute)
}

func TestRawMinuteOfDay_IgnoresZone(t *testing.T) {
	// Rule times are wall-clock labels; whatever offset the timestamp
	// happens to carry must not change the reading.
	utc := time.Date(2000, 1, 1, 17, 0, 0, 0, time.UTC)
	offset := time.Date(2000, 1, 1, 17, 0, 0, 0, time.FixedZone("ICT", 7*3600))

	assert.Equal(t, 17*60, RawMinuteOfDay(utc))
	assert.Equal(t, 17*60, RawMinuteOfDay(offset))
}

func TestInterval_EndTouchingMidnight(t *testing.T) {
	n, err := NewNormalizer("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	// 22:00 - 24:00 local.
	start := time.Date(2024, 1, 4, 15, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	weekday, startMin, endMin := n.Interval(start, end)
	assert.Equal(t, int(time.Thursday), weekday)
	assert.Equal(t, 22*60, startMin)
	assert.Equal(t, MinutesPerDay, endMin)
}

func TestAt_CombinesDateAndTimeOfDay(t *testing.T) {
	n, err := NewNormalizer("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	date := time.Date(2024, 3, 6, 0, 0, 0, 0, n.Location())
	timeOfDay := time.Date(2000, 1, 1, 19, 30, 0, 0, time.UTC)

	got := n.At(date, timeOfDay)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 6, got.Day())
	assert.Equal(t, 19, got.Hour())
	assert.Equal(t, 30, got.Minute())
}
