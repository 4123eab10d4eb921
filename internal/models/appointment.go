package models

import "time"

// Appointment is a confirmed booking of one service at one slot.
type Appointment struct {
	ID         string    `json:"id"`
	CustomerID *string   `json:"customer_id,omitempty"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	Service    string    `json:"service"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	CreatedAt  time.Time `json:"created_at"`
}

// AppointmentFilter narrows ListAppointments. Empty fields match everything.
type AppointmentFilter struct {
	Date     string
	Name     string
	DateFrom string
	DateTo   string
}

// BookingRequest is the candidate booking handed to the conflict resolver.
type BookingRequest struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Phone   string `json:"phone"`
}

// Outcome is the terminal state of one booking decision.
type Outcome string

const (
	OutcomeIncomplete   Outcome = "incomplete"
	OutcomePhoneInvalid Outcome = "phone_invalid"
	OutcomeBlackout     Outcome = "blackout"
	OutcomeOutsideHours Outcome = "outside_hours"
	OutcomeSlotFull     Outcome = "slot_full"
	OutcomeAccepted     Outcome = "accepted"
)

// IsConflict reports whether the outcome was a calendar conflict.
func (o Outcome) IsConflict() bool {
	switch o {
	case OutcomeBlackout, OutcomeOutsideHours, OutcomeSlotFull:
		return true
	default:
		return false
	}
}

// BookingDecision is the result of running a BookingRequest through the resolver.
type BookingDecision struct {
	Outcome     Outcome        `json:"outcome"`
	Request     BookingRequest `json:"request"`
	Appointment *Appointment   `json:"appointment,omitempty"`
	Suggestions []string       `json:"suggestions"`
	// Open and Close describe the day's window when one exists.
	Open  string `json:"open,omitempty"`
	Close string `json:"close,omitempty"`
	// BlackoutNote is set for OutcomeBlackout.
	BlackoutNote string `json:"blackout_note,omitempty"`
	// Message carries the phone validator's wording for OutcomePhoneInvalid.
	Message string `json:"message,omitempty"`
}
