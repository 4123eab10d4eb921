package schedule

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/models"
)

// Source is the read side of the store the calendar depends on.
// Lookups return nil, nil when no row exists.
type Source interface {
	GetBlackout(ctx context.Context, date string) (*models.Blackout, error)
	GetWorkingHours(ctx context.Context, dayOfWeek int) (*models.WorkingHours, error)
	OccupancyForDate(ctx context.Context, date string) (map[string]int, error)
}

// DayHours is the opening state of one calendar date.
type DayHours struct {
	Date     string
	Weekday  time.Weekday
	Open     bool
	Window   Window
	Blackout *models.Blackout
}

// Closed reports whether no appointment can be taken on the day.
func (d DayHours) Closed() bool {
	return d.Blackout != nil || !d.Open
}

// IsWithinHours reports whether an appointment of the given length starting
// at start fits the day's opening window.
func (d DayHours) IsWithinHours(start Clock, durationMinutes int) bool {
	if d.Closed() {
		return false
	}
	return d.Window.Fits(start, durationMinutes)
}

// Calendar answers availability questions against the store. Every call
// re-reads the store; nothing is cached.
type Calendar struct {
	src   Source
	rules Rules
}

func NewCalendar(src Source, rules Rules) *Calendar {
	return &Calendar{src: src, rules: rules}
}

// Rules returns the policy the calendar was built with.
func (c *Calendar) Rules() Rules {
	return c.rules
}

// HoursFor resolves the opening window of a date. A blackout wins over the
// weekday hours.
func (c *Calendar) HoursFor(ctx context.Context, date string) (DayHours, error) {
	d, err := ParseDate(date, c.rules.Location)
	if err != nil {
		return DayHours{}, err
	}
	day := DayHours{Date: date, Weekday: d.Weekday()}

	blackout, err := c.src.GetBlackout(ctx, date)
	if err != nil {
		return DayHours{}, fmt.Errorf("failed to load blackout for %s: %w", date, err)
	}
	if blackout != nil {
		day.Blackout = blackout
		return day, nil
	}

	hours, err := c.src.GetWorkingHours(ctx, int(day.Weekday))
	if err != nil {
		return DayHours{}, fmt.Errorf("failed to load hours for %s: %w", date, err)
	}
	if hours == nil {
		if c.rules.UseDefaultHours {
			day.Open = true
			day.Window = c.rules.DefaultHours
		}
		return day, nil
	}

	window, err := NewWindow(hours.Open, hours.Close)
	if err != nil {
		return DayHours{}, fmt.Errorf("stored hours for weekday %d: %w", hours.DayOfWeek, err)
	}
	day.Open = true
	day.Window = window
	return day, nil
}

// Occupancy loads the per-slot appointment counts for a date.
func (c *Calendar) Occupancy(ctx context.Context, date string) (Occupancy, error) {
	occ, err := c.src.OccupancyForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load occupancy for %s: %w", date, err)
	}
	return Occupancy(occ), nil
}

// Suggest lists open start times on date at or after from, together with
// the day they were computed against. An empty from scans from opening.
func (c *Calendar) Suggest(ctx context.Context, date, from string, durationMinutes, limit int) (DayHours, []string, error) {
	var at Clock
	if from != "" {
		parsed, err := ParseClock(from)
		if err != nil {
			return DayHours{}, nil, err
		}
		at = parsed
	}
	day, err := c.HoursFor(ctx, date)
	if err != nil {
		return DayHours{}, nil, err
	}
	if day.Closed() {
		return day, []string{}, nil
	}
	occ, err := c.Occupancy(ctx, date)
	if err != nil {
		return DayHours{}, nil, err
	}
	return day, c.rules.Suggest(day, occ, at, durationMinutes, limit), nil
}
