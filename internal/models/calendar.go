package models

// WorkingHours is the opening window for one weekday (0 = Sunday).
type WorkingHours struct {
	DayOfWeek int    `json:"dow" yaml:"dow"`
	Open      string `json:"open" yaml:"open"`
	Close     string `json:"close" yaml:"close"`
}

// Blackout closes a whole calendar date.
type Blackout struct {
	Date string `json:"date" yaml:"date"`
	Note string `json:"note" yaml:"note"`
}

// DaySlots describes the open start times of one date.
type DaySlots struct {
	Date         string   `json:"date"`
	Closed       bool     `json:"closed"`
	Open         string   `json:"open,omitempty"`
	Close        string   `json:"close,omitempty"`
	BlackoutNote string   `json:"blackout_note,omitempty"`
	Suggestions  []string `json:"suggestions"`
}
