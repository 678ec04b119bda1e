package transition

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	clockLayout     = "15:04:05"
	timestampLayout = dateLayout + "T" + clockLayout
)

// Date is a calendar day with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Clock is a time of day at second precision.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock accepts HH:MM or HH:MM:SS.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	layout := clockLayout
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (c Clock) IsMidnight() bool {
	return c.Hour == 0 && c.Minute == 0 && c.Second == 0
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// EffectiveAt is a requested effective moment: a date with an optional time of day.
// A nil *EffectiveAt means "effective now".
type EffectiveAt struct {
	Date  Date
	Clock *Clock
}

func (e EffectiveAt) HasClock() bool { return e.Clock != nil }

// Instant resolves the moment in loc; date-only values resolve to the start of the day.
func (e EffectiveAt) Instant(loc *time.Location) time.Time {
	var c Clock
	if e.Clock != nil {
		c = *e.Clock
	}
	return time.Date(e.Date.Year, e.Date.Month, e.Date.Day, c.Hour, c.Minute, c.Second, 0, loc)
}

// Format renders the local wire timestamp YYYY-MM-DDTHH:MM:SS, using 00:00:00 for date-only values.
func (e EffectiveAt) Format() string {
	c := Clock{}
	if e.Clock != nil {
		c = *e.Clock
	}
	return e.Date.String() + "T" + c.String()
}

// ParseEffectiveAt reads the wire form. Empty means effective now (nil). A date alone or a
// timestamp at exactly 00:00:00 is date-only, matching what Build emits when no time was chosen.
func ParseEffectiveAt(s string) (*EffectiveAt, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.Contains(s, "T") {
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		return &EffectiveAt{Date: d}, nil
	}

	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid effective_at %q: %w", s, err)
	}
	at := &EffectiveAt{Date: DateOf(t)}
	if c := (Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}); !c.IsMidnight() {
		at.Clock = &c
	}
	return at, nil
}
