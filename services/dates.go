package services

import "time"

const dayLayout = "2006-01-02"

// DayClock normalizes instants to calendar days in one reference timezone.
// All streak arithmetic happens on these YYYY-MM-DD values, so a "day" means
// the same thing regardless of where the request came from or whether a DST
// transition sits between two completions.
type DayClock struct {
	loc *time.Location
}

func NewDayClock(loc *time.Location) DayClock {
	if loc == nil {
		loc = time.UTC
	}
	return DayClock{loc: loc}
}

// Day returns the calendar day the instant falls on
func (c DayClock) Day(t time.Time) string {
	return t.In(c.loc).Format(dayLayout)
}

// PreviousDay returns the calendar day before the given one
func (c DayClock) PreviousDay(day string) string {
	t, err := time.ParseInLocation(dayLayout, day, c.loc)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dayLayout)
}
