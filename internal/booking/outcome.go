package booking

import "time"

// OutcomeKind classifies the result of a booking or availability request.
type OutcomeKind string

const (
	OutcomeBooked           OutcomeKind = "booked"
	OutcomeSlotTaken        OutcomeKind = "slot_taken"
	OutcomeInvalidSlot      OutcomeKind = "invalid_slot"
	OutcomeRejected         OutcomeKind = "rejected"
	OutcomeFailed           OutcomeKind = "failed"
	OutcomeExtractionFailed OutcomeKind = "extraction_failed"
	OutcomeSlotsOffered     OutcomeKind = "slots_offered"
	OutcomeNoSlots          OutcomeKind = "no_slots"
)

// Caller-facing messages.
const (
	MsgBookingFailed    = "Sorry we cannot book your Appointment, please try later."
	MsgUnprocessable    = "Unprocessable Entity"
	MsgNoSlots          = "Sorry, there are no available slots at the moment."
	MsgSlotsUnavailable = "Sorry we cannot fetch the available slots right now, please try later."
	MsgExtractionFailed = "Sorry, I could not understand that date and time. Could you say it again?"
)

const confirmationLayout = "Monday, January 2 at 3:04 PM MST"

// Outcome is what a tool call reports back to the voice agent.
type Outcome struct {
	Kind           OutcomeKind
	Message        string
	Slot           string
	AvailableSlots []string
}

// SlotTakenResult is the result body for a slot the provider reports as taken.
type SlotTakenResult struct {
	Error          string   `json:"error"`
	AvailableSlots []string `json:"available_slots"`
}

// Result is the value placed in the tool-call envelope: the offered slots
// when there are any, otherwise the message.
func (o *Outcome) Result() any {
	if o == nil {
		return MsgBookingFailed
	}
	if o.Kind == OutcomeSlotTaken {
		slots := o.AvailableSlots
		if slots == nil {
			slots = []string{}
		}
		return SlotTakenResult{Error: o.Message, AvailableSlots: slots}
	}
	if len(o.AvailableSlots) > 0 {
		return o.AvailableSlots
	}
	return o.Message
}

// FormatConfirmation renders the booked-slot sentence read back to the caller.
func FormatConfirmation(at time.Time) string {
	return "Appointment booked successfully for " + at.Format(confirmationLayout)
}
