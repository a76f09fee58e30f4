package schedule

import "time"

// Boundary selects which edge of a business day a weekend instant snaps to.
type Boundary int

const (
	BoundaryStart Boundary = iota
	BoundaryEnd
)

func (b Boundary) String() string {
	if b == BoundaryEnd {
		return "end"
	}
	return "start"
}

// Business hours, local to the scheduling zone.
const (
	BusinessDayStartHour = 8
	BusinessDayEndHour   = 17
)

// Window is one addressable scheduling range.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartMillis returns the window start as provider epoch milliseconds.
func (w Window) StartMillis() int64 { return EpochMillis(w.Start) }

// EndMillis returns the window end as provider epoch milliseconds.
func (w Window) EndMillis() int64 { return EpochMillis(w.End) }

// IsBusinessDay reports whether t falls Monday through Friday in its own location.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// NextBusinessBoundary returns t unchanged on a weekday. Weekend instants move
// to the following Monday at 08:00 (start) or 17:00 (end) in t's location.
// Weekday instants are not clamped to business hours.
func NextBusinessBoundary(t time.Time, kind Boundary) time.Time {
	var days int
	switch t.Weekday() {
	case time.Saturday:
		days = 2
	case time.Sunday:
		days = 1
	default:
		return t
	}

	hour := BusinessDayStartHour
	if kind == BoundaryEnd {
		hour = BusinessDayEndHour
	}
	y, m, d := t.Date()
	return time.Date(y, m, d+days, hour, 0, 0, 0, t.Location())
}

// ComputeWindow derives the provider query range for now. The end is 17:00 on
// the start date plus expandDays, rolled past any weekend.
func ComputeWindow(now time.Time, expandDays int) Window {
	if expandDays < 1 {
		expandDays = 1
	}
	start := NextBusinessBoundary(now, BoundaryStart)
	y, m, d := start.Date()
	provisional := time.Date(y, m, d+expandDays, BusinessDayEndHour, 0, 0, 0, start.Location())
	return Window{
		Start: start,
		End:   NextBusinessBoundary(provisional, BoundaryEnd),
	}
}
