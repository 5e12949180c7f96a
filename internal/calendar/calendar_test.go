package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfUsesConfiguredLocation(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 2024-05-01 20:00 UTC is already 2024-05-02 in Kolkata.
	instant := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, Day{2024, time.May, 1}, New(time.UTC).Of(instant))
	assert.Equal(t, Day{2024, time.May, 2}, New(kolkata).Of(instant))
	assert.Equal(t, Day{2024, time.May, 2}, New(kolkata).OfMillis(instant.UnixMilli()))
}

func TestTodayUsesClock(t *testing.T) {
	fixed := time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)
	cal := New(time.UTC).WithClock(func() time.Time { return fixed })
	assert.Equal(t, "2024-02-29", cal.Today().String())
}

func TestDaysIn(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysIn(tt.year, tt.month), "%d-%d", tt.year, tt.month)
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, Day{2024, time.May, 1}, d)
	assert.True(t, d.Before(Day{2024, time.May, 2}))

	_, err = ParseDay("05/01/2024")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	cal, err := Load("Local")
	require.NoError(t, err)
	assert.Equal(t, time.Local, cal.Location())

	_, err = Load("Not/AZone")
	assert.Error(t, err)
}
