package fleet

import "time"

const YearMonthDayFormat = "2006-01-02"

// Calendar describes when a Trip runs: a weekday pattern bounded by a date
// range, with explicit added and removed exception dates.
type Calendar struct {
	PrimaryIdentifier string `bson:"primaryidentifier"`

	// Days is indexed by time.Weekday (Sunday == 0).
	Days [7]bool `bson:"days"`

	StartDate time.Time `bson:"startdate"`
	EndDate   time.Time `bson:"enddate"`

	AddedDates   []time.Time `bson:"addeddates,omitempty"`
	RemovedDates []time.Time `bson:"removeddates,omitempty"`
}

// MatchDate reports whether the calendar is valid on the date of t.
func (c *Calendar) MatchDate(t time.Time) bool {
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	for _, removed := range c.RemovedDates {
		if sameDate(removed, date) {
			return false
		}
	}

	for _, added := range c.AddedDates {
		if sameDate(added, date) {
			return true
		}
	}

	if !c.StartDate.IsZero() && date.Before(c.StartDate) {
		return false
	}
	if !c.EndDate.IsZero() && date.After(c.EndDate) {
		return false
	}

	return c.Days[date.Weekday()]
}

func sameDate(a time.Time, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
