package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var ErrInvalidWindow = errors.New("invalid time window")

const minutesPerDay = 24 * 60

// TimeOfDay is a local wall-clock time stored as minutes after midnight.
// 24:00 is only meaningful as an exclusive end bound.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (seconds are dropped).
// "24:00" is allowed as an end of day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if s == "24:00" || s == "24:00:00" {
		return minutesPerDay, nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("%w: bad time of day %q", ErrInvalidWindow, s)
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan reads a postgres time column. lib/pq hands those over as time.Time
// anchored on 0000-01-01, or as text when scanned through a generic row.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		if v.Day() == 2 && v.Hour() == 0 && v.Minute() == 0 {
			// 24:00:00 rolls over into the next day
			*t = minutesPerDay
			return nil
		}
		*t = TimeOfDayOf(v)
		return nil
	case []byte:
		return t.Scan(string(v))
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	return fmt.Errorf("cannot scan %T into TimeOfDay", src)
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// DaySet is a set of weekdays, bit i set for time.Weekday(i) (0=Sunday).
type DaySet uint8

const AllDays DaySet = 0x7f

func NewDaySet(days ...time.Weekday) DaySet {
	var d DaySet
	for _, day := range days {
		d |= 1 << uint(day)
	}
	return d
}

func (d DaySet) Has(day time.Weekday) bool {
	return d&(1<<uint(day)) != 0
}

func (d DaySet) Days() []int {
	out := make([]int, 0, 7)
	for i := 0; i < 7; i++ {
		if d.Has(time.Weekday(i)) {
			out = append(out, i)
		}
	}
	return out
}

// Next shifts every day forward by one, Saturday wrapping to Sunday.
func (d DaySet) Next() DaySet {
	return ((d << 1) | (d >> 6)) & AllDays
}

func daySetFromInts(days []int64) (DaySet, error) {
	var d DaySet
	for _, day := range days {
		if day < 0 || day > 6 {
			return 0, fmt.Errorf("%w: day of week %d out of range", ErrInvalidWindow, day)
		}
		d |= 1 << uint(day)
	}
	return d, nil
}

func (d DaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Days())
}

func (d *DaySet) UnmarshalJSON(b []byte) error {
	var days []int64
	if err := json.Unmarshal(b, &days); err != nil {
		return err
	}
	parsed, err := daySetFromInts(days)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan reads a smallint[] column.
func (d *DaySet) Scan(src any) error {
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	parsed, err := daySetFromInts(arr)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DaySet) Value() (driver.Value, error) {
	days := d.Days()
	arr := make(pq.Int64Array, len(days))
	for i, day := range days {
		arr[i] = int64(day)
	}
	return arr.Value()
}

// Window is a recurring local time-of-day range on a set of weekdays,
// start inclusive and end exclusive. It never crosses midnight.
type Window struct {
	Days  DaySet    `json:"days"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (w Window) Validate() error {
	if w.Days == 0 {
		return fmt.Errorf("%w: no days selected", ErrInvalidWindow)
	}
	if w.Days&^AllDays != 0 {
		return fmt.Errorf("%w: unknown day bits", ErrInvalidWindow)
	}
	if w.Start < 0 || w.End > minutesPerDay {
		return fmt.Errorf("%w: bounds out of range", ErrInvalidWindow)
	}
	if w.End <= w.Start {
		return fmt.Errorf("%w: end %s must be after start %s", ErrInvalidWindow, w.End, w.Start)
	}
	return nil
}

// Contains reports whether the wall clock reading of local falls inside the
// window. Callers convert to the viewer's location first.
func (w Window) Contains(local time.Time) bool {
	if !w.Days.Has(local.Weekday()) {
		return false
	}
	tod := TimeOfDayOf(local)
	return tod >= w.Start && tod < w.End
}

// SplitOvernight turns a range that wraps past midnight (end <= start) into
// the two same-day windows it stands for. Non-wrapping windows come back
// unchanged.
func SplitOvernight(days DaySet, start, end TimeOfDay) []Window {
	if end > start {
		return []Window{{Days: days, Start: start, End: end}}
	}
	out := []Window{{Days: days, Start: start, End: minutesPerDay}}
	if end > 0 {
		out = append(out, Window{Days: days.Next(), Start: 0, End: end})
	}
	return out
}

type PredicateKind string

const (
	PredicateAlways     PredicateKind = "always"
	PredicateTimeWindow PredicateKind = "time_window"
)

// Predicate gates a single playlist item. The zero value is Always.
type Predicate struct {
	Kind   PredicateKind
	Window Window
}

func AlwaysPredicate() Predicate { return Predicate{Kind: PredicateAlways} }

func WindowPredicate(w Window) Predicate {
	return Predicate{Kind: PredicateTimeWindow, Window: w}
}

func (p Predicate) Holds(local time.Time) bool {
	if p.Kind != PredicateTimeWindow {
		return true
	}
	return p.Window.Contains(local)
}

func (p Predicate) Validate() error {
	switch p.Kind {
	case "", PredicateAlways:
		return nil
	case PredicateTimeWindow:
		return p.Window.Validate()
	}
	return fmt.Errorf("%w: unknown predicate kind %q", ErrInvalidWindow, p.Kind)
}

type predicateJSON struct {
	Kind  PredicateKind `json:"kind"`
	Days  []int64       `json:"days,omitempty"`
	Start *TimeOfDay    `json:"start,omitempty"`
	End   *TimeOfDay    `json:"end,omitempty"`
}

func (p Predicate) MarshalJSON() ([]byte, error) {
	if p.Kind != PredicateTimeWindow {
		return json.Marshal(predicateJSON{Kind: PredicateAlways})
	}
	days := p.Window.Days.Days()
	raw := predicateJSON{Kind: PredicateTimeWindow, Start: &p.Window.Start, End: &p.Window.End}
	for _, d := range days {
		raw.Days = append(raw.Days, int64(d))
	}
	return json.Marshal(raw)
}

func (p *Predicate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = AlwaysPredicate()
		return nil
	}
	var raw predicateJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "", PredicateAlways:
		*p = AlwaysPredicate()
		return nil
	case PredicateTimeWindow:
		if raw.Start == nil || raw.End == nil {
			return fmt.Errorf("%w: time_window predicate needs start and end", ErrInvalidWindow)
		}
		days, err := daySetFromInts(raw.Days)
		if err != nil {
			return err
		}
		*p = WindowPredicate(Window{Days: days, Start: *raw.Start, End: *raw.End})
		return nil
	}
	return fmt.Errorf("%w: unknown predicate kind %q", ErrInvalidWindow, raw.Kind)
}

// Scan reads the nullable schedule_predicate jsonb column.
func (p *Predicate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = AlwaysPredicate()
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	}
	return fmt.Errorf("cannot scan %T into Predicate", src)
}

func (p Predicate) Value() (driver.Value, error) {
	if p.Kind != PredicateTimeWindow {
		return nil, nil
	}
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
