// Package calendar contains the GoHighLevel calendar REST client used to list
// free slots and create appointments.
package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// RuleSlotTaken is the 422 rule reported when the slot is no longer free.
	RuleSlotTaken = "invalid"
	// RuleBadFormat is the 422 rule reported for a malformed slot timestamp.
	RuleBadFormat = "iso8601"
)

// BookingRequest carries the contact and slot for one appointment. Calendar
// and timezone come from the client configuration.
type BookingRequest struct {
	SelectedSlot string
	Phone        string
	// PhoneToText is the number used for SMS confirmations. Empty means Phone.
	PhoneToText string
	FirstName   string
	LastName    string
}

// BookingResult is the provider's answer to a successful booking.
type BookingResult struct {
	ID           string          `json:"id,omitempty"`
	StartTime    string          `json:"startTime,omitempty"`
	Status       string          `json:"status,omitempty"`
	SelectedSlot string          `json:"-"`
	Raw          json.RawMessage `json:"-"`
}

type bookingPayload struct {
	CalendarID       string `json:"calendarId,omitempty"`
	SelectedTimezone string `json:"selectedTimezone,omitempty"`
	SelectedSlot     string `json:"selectedSlot,omitempty"`
	Phone            string `json:"phone,omitempty"`
	PhoneToText      string `json:"Phone to text,omitempty"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
}

// missing lists the payload's empty required fields by their wire names.
func (p bookingPayload) missing() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"calendarId", p.CalendarID},
		{"selectedTimezone", p.SelectedTimezone},
		{"selectedSlot", p.SelectedSlot},
		{"phone", p.Phone},
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
	}
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}

type daySlots struct {
	Slots []string `json:"slots"`
}

type providerMessage struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

type slotRejection struct {
	SelectedSlot *struct {
		Message string `json:"message"`
		Rule    string `json:"rule"`
	} `json:"selectedSlot"`
	CalendarID       json.RawMessage `json:"calendarId"`
	SelectedTimezone json.RawMessage `json:"selectedTimezone"`
	Phone            json.RawMessage `json:"phone"`
}

func (r slotRejection) missingFields() []string {
	var out []string
	if len(r.CalendarID) > 0 {
		out = append(out, "calendarId")
	}
	if len(r.SelectedTimezone) > 0 {
		out = append(out, "selectedTimezone")
	}
	if len(r.Phone) > 0 {
		out = append(out, "phone")
	}
	return out
}

// ProviderError reports a non-success response (or transport failure) from
// the calendar provider.
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("calendar: %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("calendar: %s returned %d: %s", e.Operation, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError reports booking fields that were empty before any request
// was sent.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Missing required fields: " + strings.Join(e.Missing, ", ")
}

// BookingRejection is a 422 answer to a booking request.
type BookingRejection struct {
	Rule          string
	Message       string
	MissingFields []string
	Body          string
}

func (e *BookingRejection) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("calendar: booking rejected (%s): %s", e.Rule, e.Message)
	case len(e.MissingFields) > 0:
		return "calendar: booking rejected: Missing required fields: " + strings.Join(e.MissingFields, ", ")
	default:
		return "calendar: booking rejected: Unprocessable Entity"
	}
}

// SlotTaken reports whether the requested slot is already booked.
func (e *BookingRejection) SlotTaken() bool { return e.Rule == RuleSlotTaken }

// BadFormat reports whether the slot timestamp was rejected as malformed.
func (e *BookingRejection) BadFormat() bool { return e.Rule == RuleBadFormat }
