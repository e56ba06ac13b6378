package domain

import (
	"fmt"
	"time"
)

// LocalDateLayout is the wire and storage format of a LocalDate.
const LocalDateLayout = "2006-01-02"

// LocalDate is a calendar date in the player's own time zone ("YYYY-MM-DD").
// Daily windows compare LocalDates, never UTC instants.
type LocalDate string

// LocalDateOf returns the calendar date of t in t's location.
func LocalDateOf(t time.Time) LocalDate {
	return LocalDate(t.Format(LocalDateLayout))
}

// ParseLocalDate validates and returns a LocalDate.
func ParseLocalDate(s string) (LocalDate, error) {
	if _, err := time.Parse(LocalDateLayout, s); err != nil {
		return "", fmt.Errorf("invalid local date %q: %w", s, err)
	}
	return LocalDate(s), nil
}

// Time returns midnight of d in loc.
func (d LocalDate) Time(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(LocalDateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns d shifted by n calendar days.
func (d LocalDate) AddDays(n int) LocalDate {
	return LocalDateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// DaysUntil returns the number of calendar days from d to other.
func (d LocalDate) DaysUntil(other LocalDate) int {
	a := d.Time(time.UTC)
	b := other.Time(time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func (d LocalDate) IsZero() bool { return d == "" }

func (d LocalDate) String() string { return string(d) }
