// Package analytics derives model features from flight records.
// It covers calendar features (period of day, high season, departure
// delay in minutes), the delay label and one-hot encoding to the fixed
// feature schema.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"flight-delay/internal/models"
)

const (
	// TimestampLayout format of Fecha-I and Fecha-O
	TimestampLayout = "2006-01-02 15:04:05"
	// DefaultThresholdMinutes delay above which a flight is labelled late
	DefaultThresholdMinutes = 15
)

// Period is the part of the day a flight was scheduled in
type Period int

const (
	PeriodUndefined Period = iota
	PeriodMorning
	PeriodAfternoon
	PeriodNight
)

func (p Period) String() string {
	switch p {
	case PeriodMorning:
		return "morning"
	case PeriodAfternoon:
		return "afternoon"
	case PeriodNight:
		return "night"
	default:
		return "undefined"
	}
}

// day windows as minutes since midnight; night is everything else
const (
	morningStart   = 5 * 60
	afternoonStart = 12 * 60
	nightStart     = 19 * 60
)

// seasonWindow is an inclusive month/day range within one year
type seasonWindow struct {
	fromMonth, fromDay int
	toMonth, toDay     int
}

var highSeason = []seasonWindow{
	{12, 15, 12, 31},
	{1, 1, 3, 3},
	{7, 15, 7, 31},
	{9, 11, 9, 30},
}

// Derived holds the calendar features of one training record
type Derived struct {
	PeriodDay  Period
	HighSeason bool
	MinDiff    float64
	Delay      int
}

// ParseTimestamp parses a Fecha-I/Fecha-O value
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %v", models.ErrData, s, err)
	}
	return t, nil
}

// PeriodOfDay buckets the clock time of t: morning [05:00,12:00),
// afternoon [12:00,19:00), night [19:00,05:00). The date is ignored.
func PeriodOfDay(t time.Time) Period {
	m := t.Hour()*60 + t.Minute()
	switch {
	case m >= morningStart && m < afternoonStart:
		return PeriodMorning
	case m >= afternoonStart && m < nightStart:
		return PeriodAfternoon
	default:
		return PeriodNight
	}
}

// IsHighSeason reports whether the calendar day of t falls in one of the
// high-season windows of its own year. Windows include their whole last
// day, so 2017-03-03 10:00 is high season; comparing against midnight of
// the end date would exclude everything after 00:00 on that day.
func IsHighSeason(t time.Time) bool {
	key := int(t.Month())*100 + t.Day()
	for _, w := range highSeason {
		if key >= w.fromMonth*100+w.fromDay && key <= w.toMonth*100+w.toDay {
			return true
		}
	}
	return false
}

// MinutesLate returns actual - scheduled in minutes; negative means early
func MinutesLate(scheduled, actual time.Time) float64 {
	return actual.Sub(scheduled).Minutes()
}

// Preprocess derives the calendar features and the delay label of every
// record. A record is late when it departed strictly more than
// thresholdMinutes after schedule.
func Preprocess(records []models.FlightRecord, thresholdMinutes float64) ([]Derived, error) {
	out := make([]Derived, len(records))
	for i, r := range records {
		scheduled, err := ParseTimestamp(r.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("row %d Fecha-I: %w", i, err)
		}
		actual, err := ParseTimestamp(r.DepartedAt)
		if err != nil {
			return nil, fmt.Errorf("row %d Fecha-O: %w", i, err)
		}

		diff := MinutesLate(scheduled, actual)
		d := Derived{
			PeriodDay:  PeriodOfDay(scheduled),
			HighSeason: IsHighSeason(scheduled),
			MinDiff:    diff,
		}
		if diff > thresholdMinutes {
			d.Delay = 1
		}
		out[i] = d
	}
	return out, nil
}

// Labels extracts the delay column
func Labels(derived []Derived) []int {
	labels := make([]int, len(derived))
	for i, d := range derived {
		labels[i] = d.Delay
	}
	return labels
}
