package schedule

import (
	"fmt"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/models"
)

// Rules is the booking policy shared by every request. It is built once and
// never mutated.
type Rules struct {
	Capacity        int
	StepMinutes     int
	DurationMinutes int
	SuggestionLimit int
	DefaultHours    Window
	Location        *time.Location
	// UseDefaultHours opens weekdays without a stored hours row using
	// DefaultHours instead of treating them as closed.
	UseDefaultHours bool
}

// NewRules converts validated configuration into Rules.
func NewRules(cfg config.SchedulingConfig) (Rules, error) {
	window, err := ParseWindow(cfg.DefaultHours)
	if err != nil {
		return Rules{}, fmt.Errorf("default hours: %w", err)
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Rules{}, fmt.Errorf("timezone: %w", err)
	}
	if cfg.CapacityPerSlot < 1 || cfg.SlotStepMinutes < 1 || cfg.ServiceDurationMinutes < 1 {
		return Rules{}, fmt.Errorf("capacity, step and duration must be positive")
	}
	return Rules{
		Capacity:        cfg.CapacityPerSlot,
		StepMinutes:     cfg.SlotStepMinutes,
		DurationMinutes: cfg.ServiceDurationMinutes,
		SuggestionLimit: cfg.Suggestions(),
		DefaultHours:    window,
		Location:        loc,
		UseDefaultHours: cfg.MissingHoursPolicy == models.MissingHoursDefaultHours,
	}, nil
}

// Occupancy maps "HH:MM" to the number of appointments starting then.
type Occupancy map[string]int

// Count returns the number of appointments at c.
func (o Occupancy) Count(c Clock) int {
	return o[c.String()]
}

// Suggest scans the day from max(from, open) in StepMinutes increments and
// returns up to limit start times where an appointment of the given length
// fits before close and the slot is below capacity. The result is never nil.
func (r Rules) Suggest(day DayHours, occ Occupancy, from Clock, durationMinutes, limit int) []string {
	out := make([]string, 0, max(limit, 0))
	if day.Closed() || limit <= 0 || r.StepMinutes < 1 {
		return out
	}

	t := max(from, day.Window.Open)
	for ; t.Add(durationMinutes) <= day.Window.Close; t = t.Add(r.StepMinutes) {
		if occ.Count(t) < r.Capacity {
			out = append(out, t.String())
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
