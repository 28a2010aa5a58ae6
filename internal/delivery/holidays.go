package delivery

import (
	"fmt"
	"time"
)

// holidayTable maps year -> "MM-DD" -> holiday name. These are gazetted
// per-year facts, not computed; a year missing from the table simply has
// no holidays known, which fails open (dates stay available).
var holidayTable = map[int]map[string]string{
	2025: {
		"01-01": "New Year's Day",
		"04-18": "Good Friday",
		"04-21": "Easter Monday",
		"05-01": "Labour Day",
		"07-04": "Founders' Day",
		"12-24": "Christmas Eve",
		"12-25": "Christmas Day",
		"12-26": "Boxing Day",
	},
	2026: {
		"01-01": "New Year's Day",
		"04-03": "Good Friday",
		"04-06": "Easter Monday",
		"05-01": "Labour Day",
		"07-04": "Founders' Day",
		"12-24": "Christmas Eve",
		"12-25": "Christmas Day",
		"12-26": "Boxing Day",
	},
	2027: {
		"01-01": "New Year's Day",
		"03-26": "Good Friday",
		"03-29": "Easter Monday",
		"05-01": "Labour Day",
		"07-04": "Founders' Day",
		"12-24": "Christmas Eve",
		"12-25": "Christmas Day",
		"12-26": "Boxing Day",
	},
}

func holidayName(date time.Time) (string, bool) {
	year, ok := holidayTable[date.Year()]
	if !ok {
		return "", false
	}
	name, ok := year[fmt.Sprintf("%02d-%02d", int(date.Month()), date.Day())]
	return name, ok
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// isWorkingDay reports whether deliveries go out on the given date.
func isWorkingDay(date time.Time) bool {
	if isWeekend(date) {
		return false
	}
	_, holiday := holidayName(date)
	return !holiday
}
