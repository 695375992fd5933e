package interval

import "time"

// Span is a half-open [Start, End) interval between two UTC instants.
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) IntervalStart() time.Time { return s.Start }
func (s Span) IntervalEnd() time.Time   { return s.End }

// HasInterval is implemented by any value with half-open start/end accessors
// in a common coordinate space. One overlap check serves templates,
// appointments and externally sourced busy windows alike.
type HasInterval interface {
	IntervalStart() time.Time
	IntervalEnd() time.Time
}

// Clashes reports whether subject overlaps other under half-open semantics.
// Spans that only touch at a boundary do not clash.
func Clashes(subject, other HasInterval) bool {
	ss, se := subject.IntervalStart(), subject.IntervalEnd()
	os, oe := other.IntervalStart(), other.IntervalEnd()

	// subject starts inside other
	if !ss.Before(os) && ss.Before(oe) {
		return true
	}
	// subject ends inside other
	if se.After(os) && !se.After(oe) {
		return true
	}
	// subject wholly contains other
	if !ss.After(os) && !se.Before(oe) {
		return true
	}
	return false
}

// ClashesAny reports whether subject overlaps any entry in others.
func ClashesAny[T HasInterval](subject HasInterval, others []T) bool {
	for _, other := range others {
		if Clashes(subject, other) {
			return true
		}
	}
	return false
}

// MinuteSpan is a half-open [From, To) interval in minutes since Monday 00:00.
type MinuteSpan struct {
	From int
	To   int
}

func (m MinuteSpan) MinuteStart() int { return m.From }
func (m MinuteSpan) MinuteEnd() int   { return m.To }

// HasMinuteInterval mirrors HasInterval for the minutes-in-week coordinate
// space used by recurring weekly templates.
type HasMinuteInterval interface {
	MinuteStart() int
	MinuteEnd() int
}

// ClashesMinutes applies the same three overlap rules in minute coordinates.
func ClashesMinutes(subject, other HasMinuteInterval) bool {
	ss, se := subject.MinuteStart(), subject.MinuteEnd()
	os, oe := other.MinuteStart(), other.MinuteEnd()

	if ss >= os && ss < oe {
		return true
	}
	if se > os && se <= oe {
		return true
	}
	if ss <= os && se >= oe {
		return true
	}
	return false
}

// ClashesAnyMinutes reports whether subject overlaps any entry in others.
func ClashesAnyMinutes[T HasMinuteInterval](subject HasMinuteInterval, others []T) bool {
	for _, other := range others {
		if ClashesMinutes(subject, other) {
			return true
		}
	}
	return false
}
