package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the on-disk and on-wire calendar date format.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time component, always in UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD. Out-of-range days such as 2025-02-30 are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: %w: date is required", ErrValidation, ErrInvalidDate)
	}
	if y := d.Time.Year(); y < 1 || y > 9999 {
		return fmt.Errorf("%w: %w: year %d", ErrValidation, ErrInvalidDate, y)
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrInvalidDate, string(data))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Period is a calendar month window.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
}

// NewPeriod validates and builds a Period.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the calendar month containing d.
func PeriodOf(d Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: %w: got %d", ErrValidation, ErrInvalidMonth, p.Month)
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: %w: got %d", ErrValidation, ErrInvalidYear, p.Year)
	}
	return nil
}

// Start is the first day of the month (inclusive bound).
func (p Period) Start() Date {
	return NewDate(p.Year, p.Month, 1)
}

// End is the first day of the following month (exclusive bound).
func (p Period) End() Date {
	return Date{Time: p.Start().AddDate(0, 1, 0)}
}

// Last is the final day of the month (inclusive bound). Storage compares
// dates as YYYY-MM-DD text, so it filters on [Start, Last]: End of
// December 9999 formats as a five-digit year and sorts before every date.
func (p Period) Last() Date {
	return Date{Time: p.End().AddDate(0, 0, -1)}
}

// Contains reports whether d falls in [Start, End).
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start().Time) && d.Before(p.End().Time)
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
