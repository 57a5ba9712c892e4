package kn15

import "time"

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func prevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// clampedDate builds a date, pulling day back to the month's last day.
// Hour 24 normalises to 00:00 of the following day.
func clampedDate(year int, month time.Month, day, hour int, loc *time.Location) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}

// resolveDayHour places a day-of-month and hour in the month of now, or the
// month before. A day the current month lacks (30 in February) becomes the
// last day of the previous month; a date after now rolls back one month.
// This assumes the telegram is less than about a month old.
func resolveDayHour(now time.Time, day, hour int) time.Time {
	year, month := now.Year(), now.Month()
	if day > daysIn(year, month) {
		year, month = prevMonth(year, month)
		day = daysIn(year, month)
	}
	t := clampedDate(year, month, day, hour, now.Location())
	if t.After(now) {
		year, month = prevMonth(year, month)
		t = clampedDate(year, month, day, hour, now.Location())
	}
	return t
}

// resolveMonthDayHour places a month, day and hour in the year of now, or
// the year before when the result would be in the future.
func resolveMonthDayHour(now time.Time, month time.Month, day, hour int) time.Time {
	t := clampedDate(now.Year(), month, day, hour, now.Location())
	if t.After(now) {
		t = clampedDate(now.Year()-1, month, day, hour, now.Location())
	}
	return t
}

// decadeTimestamp is noon of the decade's middle day in the month of ref,
// or of the previous month when that lies after ref.
func decadeTimestamp(ref time.Time, d Decade) time.Time {
	day := 15
	switch d {
	case DecadeFirst:
		day = 5
	case DecadeThird:
		day = 25
	}
	t := time.Date(ref.Year(), ref.Month(), day, 12, 0, 0, 0, ref.Location())
	if t.After(ref) {
		year, month := prevMonth(ref.Year(), ref.Month())
		t = time.Date(year, month, day, 12, 0, 0, 0, ref.Location())
	}
	return t
}
