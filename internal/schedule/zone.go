// Package schedule computes business-day request windows in a fixed civil
// time zone and reduces calendar availability down to the couple of slots a
// voice agent offers the caller.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	// OffsetLayout is the window-boundary form the calendar provider accepts.
	// The offset must keep its colon; compact offsets are rejected upstream.
	OffsetLayout = "2006-01-02 15:04:05-07:00"
	// SlotLayout is the ISO-8601 form used for bookable slots.
	SlotLayout = "2006-01-02T15:04:05-07:00"
	// StampLayout renders "now" for logs and prompts.
	StampLayout = "2006-01-02 15:04:05 MST"
	// DateLayout keys the availability map.
	DateLayout = "2006-01-02"
)

// FormatError reports a datetime string that is not ISO-8601.
type FormatError struct {
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("schedule: %q is not an ISO-8601 datetime", e.Value)
}

func (e *FormatError) Unwrap() error { return e.Err }

var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Inputs without an offset are read as wall-clock time in the zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

// Zone pins all scheduling arithmetic to one location.
type Zone struct {
	loc   *time.Location
	clock func() time.Time
}

// NewZone wraps loc. A nil location falls back to UTC.
func NewZone(loc *time.Location) *Zone {
	if loc == nil {
		loc = time.UTC
	}
	return &Zone{loc: loc, clock: time.Now}
}

// LoadZone resolves an IANA zone name such as "America/New_York".
func LoadZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("schedule: load zone %q: %w", name, err)
	}
	return NewZone(loc), nil
}

// WithClock returns a copy of the zone reading the current time from clock.
func (z *Zone) WithClock(clock func() time.Time) *Zone {
	cp := *z
	if clock == nil {
		clock = time.Now
	}
	cp.clock = clock
	return &cp
}

// Location returns the underlying *time.Location.
func (z *Zone) Location() *time.Location { return z.loc }

// Now returns the current instant expressed in the zone.
func (z *Zone) Now() time.Time { return z.clock().In(z.loc) }

// In converts t into the zone.
func (z *Zone) In(t time.Time) time.Time { return t.In(z.loc) }

// Stamp renders t as "YYYY-MM-DD HH:MM:SS EDT".
func (z *Zone) Stamp(t time.Time) string { return t.In(z.loc).Format(StampLayout) }

// ParseISO8601 parses s and returns the instant in the zone. Strings without
// an offset are assumed to already be local to the zone.
func (z *Zone) ParseISO8601(s string) (time.Time, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return time.Time{}, &FormatError{Value: s}
	}

	var lastErr error
	for _, layout := range offsetLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.In(z.loc), nil
		}
		lastErr = err
	}
	for _, layout := range naiveLayouts {
		t, err := time.ParseInLocation(layout, raw, z.loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &FormatError{Value: s, Err: lastErr}
}

// EpochMillis truncates t to whole seconds before scaling, matching the
// provider's seconds-precision epoch convention.
func EpochMillis(t time.Time) int64 { return t.Unix() * 1000 }

// FormatWithOffset renders "YYYY-MM-DD HH:MM:SS±HH:MM".
func FormatWithOffset(t time.Time) string { return t.Format(OffsetLayout) }

// FormatSlot renders "YYYY-MM-DDTHH:MM:SS±HH:MM".
func FormatSlot(t time.Time) string { return t.Format(SlotLayout) }
