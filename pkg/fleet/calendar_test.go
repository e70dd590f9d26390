package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func weekdayCalendar() *Calendar {
	return &Calendar{
		PrimaryIdentifier: "CALENDAR:weekday",
		Days:              [7]bool{false, true, true, true, true, true, false},
		StartDate:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCalendarMatchesWeekdayPattern(t *testing.T) {
	calendar := weekdayCalendar()

	// 2024-03-01 is a Friday
	assert.True(t, calendar.MatchDate(time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)))
	assert.False(t, calendar.MatchDate(time.Date(2024, time.March, 2, 10, 30, 0, 0, time.UTC)))
	assert.False(t, calendar.MatchDate(time.Date(2024, time.March, 3, 10, 30, 0, 0, time.UTC)))
}

func TestCalendarRespectsDateRange(t *testing.T) {
	calendar := weekdayCalendar()

	assert.False(t, calendar.MatchDate(time.Date(2023, time.December, 29, 0, 0, 0, 0, time.UTC)))
	assert.False(t, calendar.MatchDate(time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)))
	assert.True(t, calendar.MatchDate(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestCalendarZeroDatesAreUnbounded(t *testing.T) {
	calendar := &Calendar{Days: [7]bool{true, true, true, true, true, true, true}}

	assert.True(t, calendar.MatchDate(time.Date(1999, time.June, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, calendar.MatchDate(time.Date(2099, time.June, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCalendarAddedDateOverridesPattern(t *testing.T) {
	calendar := weekdayCalendar()
	calendar.AddedDates = []time.Time{time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)}

	assert.True(t, calendar.MatchDate(time.Date(2024, time.March, 2, 14, 0, 0, 0, time.UTC)))
}

func TestCalendarRemovedDateOverridesEverything(t *testing.T) {
	calendar := weekdayCalendar()
	calendar.AddedDates = []time.Time{time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}
	calendar.RemovedDates = []time.Time{time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}

	assert.False(t, calendar.MatchDate(time.Date(2024, time.March, 1, 14, 0, 0, 0, time.UTC)))
}

func TestCalendarIgnoresTimeOfDay(t *testing.T) {
	calendar := weekdayCalendar()

	assert.True(t, calendar.MatchDate(time.Date(2024, time.March, 1, 23, 59, 59, 0, time.UTC)))
	assert.True(t, calendar.MatchDate(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
}
