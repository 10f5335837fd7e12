package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextOccurrence(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 9, 30, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		from     time.Time
		interval string
		anchor   int
		want     time.Time
	}{
		{name: "weekly", from: day(2024, 1, 29), interval: IntervalWeekly, anchor: 29, want: day(2024, 2, 5)},
		{name: "biweekly", from: day(2024, 12, 25), interval: IntervalBiweekly, anchor: 25, want: day(2025, 1, 8)},
		{name: "monthly", from: day(2024, 1, 15), interval: IntervalMonthly, anchor: 15, want: day(2024, 2, 15)},
		{name: "leap february", from: day(2024, 1, 31), interval: IntervalMonthly, anchor: 31, want: day(2024, 2, 29)},
		{name: "february", from: day(2023, 1, 31), interval: IntervalMonthly, anchor: 31, want: day(2023, 2, 28)},
		{name: "back to anchor", from: day(2024, 2, 29), interval: IntervalMonthly, anchor: 31, want: day(2024, 3, 31)},
		{name: "thirty days", from: day(2024, 3, 31), interval: IntervalMonthly, anchor: 31, want: day(2024, 4, 30)},
		{name: "december", from: day(2024, 12, 31), interval: IntervalMonthly, anchor: 31, want: day(2025, 1, 31)},
		{name: "no anchor", from: day(2024, 5, 10), interval: IntervalMonthly, anchor: 0, want: day(2024, 6, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextOccurrence(tt.from, tt.interval, tt.anchor))
		})
	}
}

func TestRecurringContributionNextKeepsMonthEnd(t *testing.T) {
	rc := RecurringContribution{StartDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Interval: IntervalMonthly}

	got := rc.StartDate
	var dates []time.Time
	for i := 0; i < 3; i++ {
		got = rc.Next(got)
		dates = append(dates, got)
	}
	assert.Equal(t, []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}, dates)
}
