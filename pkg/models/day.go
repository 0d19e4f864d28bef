package models

import "time"

const (
	// DayLayout keys stored allocations by calendar day.
	DayLayout = "2006-01-02"
	// DateLabelLayout is the day format shown in notifications.
	DateLabelLayout = "02-01-2006"
	// TimestampLayout is the write timestamp recorded alongside allocations.
	TimestampLayout = "2006-01-02 15:04:05"
)

// DayKey returns the storage key for the calendar day of t.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// DateLabel returns the human-facing date for t.
func DateLabel(t time.Time) string {
	return t.Format(DateLabelLayout)
}
