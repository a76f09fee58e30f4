package schedule

import (
	"sort"
	"time"

	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

// DefaultLeadTime is the minimum gap between the window start and the first
// slot offered on the opening day.
const DefaultLeadTime = time.Hour

// MaxPickedSlots bounds how many options are read out to a caller.
const MaxPickedSlots = 2

// Availability maps a calendar date (YYYY-MM-DD) to its chronological slots.
type Availability map[string][]string

// Dates returns the date keys in ascending order. The provider's JSON key
// order is not guaranteed, so selection never depends on it.
func (a Availability) Dates() []string {
	dates := make([]string, 0, len(a))
	for date := range a {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// SlotCount returns the total number of slots across all dates.
func (a Availability) SlotCount() int {
	n := 0
	for _, slots := range a {
		n += len(slots)
	}
	return n
}

// PickedSlot is one option chosen for presentation.
type PickedSlot struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

// Reducer selects a small deterministic subset of provider slots.
type Reducer struct {
	zone     *Zone
	leadTime time.Duration
	logger   *logging.Logger
}

// NewReducer builds a reducer. A non-positive lead time uses DefaultLeadTime.
func NewReducer(zone *Zone, leadTime time.Duration, logger *logging.Logger) *Reducer {
	if zone == nil {
		panic("schedule: reducer requires a zone")
	}
	if leadTime <= 0 {
		leadTime = DefaultLeadTime
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reducer{zone: zone, leadTime: leadTime, logger: logger}
}

// Reduce picks at most two slots:
//   - on the first date, the first slot at or after windowStart + lead time,
//     falling back to that date's last slot when none qualifies;
//   - on the second date, its first slot with no lead-time filter.
//
// Later dates are ignored.
func (r *Reducer) Reduce(avail Availability, windowStart string) ([]PickedSlot, error) {
	floor, err := r.zone.ParseISO8601(windowStart)
	if err != nil {
		return nil, err
	}
	earliest := floor.Add(r.leadTime)

	picked := make([]PickedSlot, 0, MaxPickedSlots)
	for i, date := range avail.Dates() {
		if i >= MaxPickedSlots {
			break
		}
		slots := avail[date]
		if len(slots) == 0 {
			r.logger.Info("no slots available for date", "date", date)
			continue
		}

		if i == 1 {
			picked = append(picked, PickedSlot{Date: date, Slot: slots[0]})
			continue
		}

		if slot, ok := r.firstAfter(date, slots, earliest); ok {
			picked = append(picked, PickedSlot{Date: date, Slot: slot})
			continue
		}
		last := slots[len(slots)-1]
		r.logger.Warn("no slot clears the lead time, offering the last slot of the day",
			"date", date,
			"earliest", FormatWithOffset(earliest),
			"slot", last,
		)
		picked = append(picked, PickedSlot{Date: date, Slot: last})
	}
	return picked, nil
}

func (r *Reducer) firstAfter(date string, slots []string, earliest time.Time) (string, bool) {
	for _, raw := range slots {
		at, err := r.zone.ParseISO8601(raw)
		if err != nil {
			r.logger.Warn("skipping unparseable slot", "date", date, "slot", raw, "error", err)
			continue
		}
		if !at.Before(earliest) {
			return raw, true
		}
	}
	return "", false
}

// SlotStrings flattens picked slots to their timestamps.
func SlotStrings(picked []PickedSlot) []string {
	out := make([]string, 0, len(picked))
	for _, p := range picked {
		out = append(out, p.Slot)
	}
	return out
}
