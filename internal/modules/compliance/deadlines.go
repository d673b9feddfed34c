package compliance

import (
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// ukHolidays lists designated UK bank holidays (England and Wales).
// Dates are kept a few years ahead; deadline computation flags results that
// were pushed past one of these days as holiday-adjusted.
var ukHolidays = map[string]bool{
	// 2025
	"2025-01-01": true, // New Year's Day
	"2025-04-18": true, // Good Friday
	"2025-04-21": true, // Easter Monday
	"2025-05-05": true, // Early May bank holiday
	"2025-05-26": true, // Spring bank holiday
	"2025-08-25": true, // Summer bank holiday
	"2025-12-25": true, // Christmas Day
	"2025-12-26": true, // Boxing Day
	// 2026
	"2026-01-01": true,
	"2026-04-03": true,
	"2026-04-06": true,
	"2026-05-04": true,
	"2026-05-25": true,
	"2026-08-31": true,
	"2026-12-25": true,
	"2026-12-28": true, // Boxing Day substitute
	// 2027
	"2027-01-01": true,
	"2027-03-26": true,
	"2027-03-29": true,
	"2027-05-03": true,
	"2027-05-31": true,
	"2027-08-30": true,
	"2027-12-27": true, // Christmas Day substitute
	"2027-12-28": true, // Boxing Day substitute
}

// holidayCalendars maps jurisdictions to their designated holiday sets.
// Jurisdictions without a calendar still skip weekends.
var holidayCalendars = map[string]map[string]bool{
	"UK": ukHolidays,
}

// FilingDeadline computes the regulatory filing due date for a breach
// detected at the given time, advancing calendar days while skipping
// Saturdays, Sundays, and - for jurisdictions with a defined holiday
// calendar - designated holidays. The result is flagged holiday-adjusted
// when at least one holiday was skipped.
func FilingDeadline(breachTime time.Time, rule *domain.RegulatoryRule) domain.FilingDeadline {
	holidays := holidayCalendars[rule.Jurisdiction]

	due := breachTime
	remaining := rule.DeadlineBusinessDays
	holidayAdjusted := false

	for remaining > 0 {
		due = due.AddDate(0, 0, 1)

		if due.Weekday() == time.Saturday || due.Weekday() == time.Sunday {
			continue
		}
		if holidays != nil && holidays[due.Format("2006-01-02")] {
			holidayAdjusted = true
			continue
		}
		remaining--
	}

	return domain.FilingDeadline{
		DueDate:         due,
		BusinessDays:    rule.DeadlineBusinessDays,
		HolidayAdjusted: holidayAdjusted,
	}
}

// IsBusinessDay reports whether the given date is a business day in the
// jurisdiction (weekday and not a designated holiday).
func IsBusinessDay(date time.Time, jurisdiction string) bool {
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}
	if holidays := holidayCalendars[jurisdiction]; holidays != nil {
		return !holidays[date.Format("2006-01-02")]
	}
	return true
}
