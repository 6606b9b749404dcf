package requests

import (
	"errors"
	"time"
)

// CalculateDays returns the inclusive calendar-day count between start and end.
func CalculateDays(start, end time.Time) (int, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return 0, errors.New("end date before start date")
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
