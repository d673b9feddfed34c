package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/vigil/internal/domain"
)

func ruleFor(jurisdiction string, businessDays int) *domain.RegulatoryRule {
	return &domain.RegulatoryRule{
		Code:                 jurisdiction + "_TEST",
		Jurisdiction:         jurisdiction,
		ThresholdPercent:     5.0,
		DeadlineBusinessDays: businessDays,
	}
}

func TestFilingDeadline_WeekdaysOnly(t *testing.T) {
	// Monday 2026-06-01 + 3 business days = Thursday 2026-06-04
	breach := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	deadline := FilingDeadline(breach, ruleFor("US", 3))

	assert.Equal(t, time.Thursday, deadline.DueDate.Weekday())
	assert.Equal(t, 4, deadline.DueDate.Day())
	assert.False(t, deadline.HolidayAdjusted)
}

func TestFilingDeadline_SkipsWeekend(t *testing.T) {
	// Thursday 2026-06-04 + 2 business days crosses the weekend to
	// Monday 2026-06-08
	breach := time.Date(2026, 6, 4, 10, 0, 0, 0, time.UTC)

	deadline := FilingDeadline(breach, ruleFor("US", 2))

	assert.Equal(t, time.Monday, deadline.DueDate.Weekday())
	assert.Equal(t, 8, deadline.DueDate.Day())
	assert.Equal(t, 2, deadline.BusinessDays)
}

func TestFilingDeadline_SkipsUKHoliday(t *testing.T) {
	// Friday 2026-05-01 + 2 business days for the UK: Monday 2026-05-04 is
	// the early May bank holiday, pushing the due date to Wednesday.
	breach := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	deadline := FilingDeadline(breach, ruleFor("UK", 2))

	assert.Equal(t, time.Wednesday, deadline.DueDate.Weekday())
	assert.Equal(t, 6, deadline.DueDate.Day())
	assert.True(t, deadline.HolidayAdjusted)
}

func TestFilingDeadline_HolidayIgnoredOutsideCalendar(t *testing.T) {
	// The same dates for a US rule: no UK calendar applies, Monday counts
	breach := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	deadline := FilingDeadline(breach, ruleFor("US", 2))

	assert.Equal(t, time.Tuesday, deadline.DueDate.Weekday())
	assert.Equal(t, 5, deadline.DueDate.Day())
	assert.False(t, deadline.HolidayAdjusted)
}

func TestFilingDeadline_WeekendBreachStartsMonday(t *testing.T) {
	// Breach detected Saturday: the first counted day is Monday
	breach := time.Date(2026, 6, 6, 10, 0, 0, 0, time.UTC)

	deadline := FilingDeadline(breach, ruleFor("US", 1))

	assert.Equal(t, time.Monday, deadline.DueDate.Weekday())
	assert.Equal(t, 8, deadline.DueDate.Day())
}

func TestIsBusinessDay(t *testing.T) {
	assert.True(t, IsBusinessDay(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "US"))
	assert.False(t, IsBusinessDay(time.Date(2026, 6, 6, 0, 0, 0, 0, time.UTC), "US"))
	assert.False(t, IsBusinessDay(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), "UK"))
	assert.True(t, IsBusinessDay(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), "US"))
}
