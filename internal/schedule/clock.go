package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/models"
)

var (
	ErrInvalidClock  = errors.New("invalid time of day")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidWindow = errors.New("invalid opening window")
)

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock accepts exactly "HH:MM" in 24-hour form.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(h*60 + m), nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns c shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// ParseDate accepts an ISO calendar date and anchors it at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(models.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// Window is a half-open opening interval [Open, Close).
type Window struct {
	Open  Clock
	Close Clock
}

// NewWindow builds a window from two "HH:MM" strings.
func NewWindow(open, closeAt string) (Window, error) {
	o, err := ParseClock(strings.TrimSpace(open))
	if err != nil {
		return Window{}, err
	}
	c, err := ParseClock(strings.TrimSpace(closeAt))
	if err != nil {
		return Window{}, err
	}
	if o >= c {
		return Window{}, fmt.Errorf("%w: %s-%s", ErrInvalidWindow, open, closeAt)
	}
	return Window{Open: o, Close: c}, nil
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	open, closeAt, ok := strings.Cut(s, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	return NewWindow(open, closeAt)
}

// Fits reports whether an appointment of the given length starting at start
// lies entirely inside the window.
func (w Window) Fits(start Clock, durationMinutes int) bool {
	return start >= w.Open && start.Add(durationMinutes) <= w.Close
}

func (w Window) String() string {
	return w.Open.String() + "-" + w.Close.String()
}
