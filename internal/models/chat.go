package models

import (
	"strings"
	"time"
)

// IntentPayload is the structured part of an intent extraction. Missing
// fields stay empty; nothing is defaulted.
type IntentPayload struct {
	Intent  string `json:"intent"`
	Name    string `json:"name"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Phone   string `json:"phone"`
}

// BookingRequest converts the payload into a resolver input.
func (p IntentPayload) BookingRequest() BookingRequest {
	return BookingRequest{
		Name:    p.Name,
		Service: p.Service,
		Date:    p.Date,
		Time:    p.Time,
		Phone:   p.Phone,
	}
}

// IsKnownIntent reports whether intent is one the extractor may emit.
func IsKnownIntent(intent string) bool {
	switch intent {
	case IntentBook, IntentClarify, IntentCancel, IntentUnknown:
		return true
	default:
		return false
	}
}

// ChatSession holds the booking draft gathered over one conversation.
type ChatSession struct {
	SessionID string        `json:"session_id"`
	Draft     IntentPayload `json:"draft"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Merge overlays the non-empty fields of p onto the draft.
func (s *ChatSession) Merge(p IntentPayload) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&s.Draft.Intent, p.Intent)
	set(&s.Draft.Name, p.Name)
	set(&s.Draft.Service, p.Service)
	set(&s.Draft.Date, p.Date)
	set(&s.Draft.Time, p.Time)
	set(&s.Draft.Phone, p.Phone)
}

// ChatResponse is what the chat endpoint returns.
type ChatResponse struct {
	Reply       string         `json:"reply"`
	Parsed      *IntentPayload `json:"parsed"`
	Saved       *Appointment   `json:"saved"`
	Conflict    bool           `json:"conflict"`
	Suggestions []string       `json:"suggestions"`
	Outcome     Outcome        `json:"outcome,omitempty"`
}

// Extraction is what an intent extractor returns for one message: the
// conversational reply and, when present and well formed, the payload.
type Extraction struct {
	Reply   string         `json:"reply"`
	Payload *IntentPayload `json:"payload"`
}
