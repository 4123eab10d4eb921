package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	hours     map[int]models.WorkingHours
	blackouts map[string]models.Blackout
	occupancy map[string]map[string]int
	err       error
	occCalls  int
}

func newFakeSource() *fakeSource {
	src := &fakeSource{
		hours:     map[int]models.WorkingHours{},
		blackouts: map[string]models.Blackout{"2025-11-17": {Date: "2025-11-17", Note: "Shop closed for renovation"}},
		occupancy: map[string]map[string]int{},
	}
	for dow := 1; dow <= 5; dow++ {
		src.hours[dow] = models.WorkingHours{DayOfWeek: dow, Open: "09:00", Close: "17:00"}
	}
	return src
}

func (f *fakeSource) GetBlackout(_ context.Context, date string) (*models.Blackout, error) {
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.blackouts[date]; ok {
		return &b, nil
	}
	return nil, nil
}

func (f *fakeSource) GetWorkingHours(_ context.Context, dow int) (*models.WorkingHours, error) {
	if h, ok := f.hours[dow]; ok {
		return &h, nil
	}
	return nil, nil
}

func (f *fakeSource) OccupancyForDate(_ context.Context, date string) (map[string]int, error) {
	f.occCalls++
	out := map[string]int{}
	for k, v := range f.occupancy[date] {
		out[k] = v
	}
	return out, nil
}

func testRules(t *testing.T) Rules {
	t.Helper()
	rules, err := NewRules(config.SchedulingConfig{
		CapacityPerSlot:        1,
		SlotStepMinutes:        30,
		ServiceDurationMinutes: 30,
		DefaultHours:           "09:00-18:00",
		Timezone:               "UTC",
		MissingHoursPolicy:     models.MissingHoursClosed,
	})
	require.NoError(t, err)
	return rules
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, Clock(570), c)
	assert.Equal(t, "09:30", c.String())

	for _, bad := range []string{"9:30", "24:00", "12:60", "ab:cd", "", "09:30:00", "3pm"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("09:00-18:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00-18:00", w.String())

	_, err = ParseWindow("18:00-09:00")
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = ParseWindow("0900")
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestWindowFits(t *testing.T) {
	w := Window{Open: 9 * 60, Close: 17 * 60}
	assert.True(t, w.Fits(9*60, 30))
	assert.True(t, w.Fits(16*60+30, 30), "ending exactly at close fits")
	assert.False(t, w.Fits(16*60+45, 30))
	assert.False(t, w.Fits(8*60+59, 30))
}

func TestCalendar_HoursFor(t *testing.T) {
	src := newFakeSource()
	cal := NewCalendar(src, testRules(t))
	ctx := context.Background()

	t.Run("Weekday", func(t *testing.T) {
		day, err := cal.HoursFor(ctx, "2025-11-18")
		require.NoError(t, err)
		assert.Equal(t, time.Tuesday, day.Weekday)
		assert.False(t, day.Closed())
		assert.Equal(t, "09:00-17:00", day.Window.String())
	})

	t.Run("BlackoutWinsOverHours", func(t *testing.T) {
		day, err := cal.HoursFor(ctx, "2025-11-17")
		require.NoError(t, err)
		assert.True(t, day.Closed())
		require.NotNil(t, day.Blackout)
		assert.Contains(t, day.Blackout.Note, "renovation")
	})

	t.Run("MissingRowIsClosed", func(t *testing.T) {
		day, err := cal.HoursFor(ctx, "2025-11-16") // Sunday
		require.NoError(t, err)
		assert.Equal(t, time.Sunday, day.Weekday)
		assert.True(t, day.Closed())
	})

	t.Run("MissingRowUsesDefaultHoursWhenConfigured", func(t *testing.T) {
		rules := testRules(t)
		rules.UseDefaultHours = true
		day, err := NewCalendar(src, rules).HoursFor(ctx, "2025-11-16")
		require.NoError(t, err)
		assert.False(t, day.Closed())
		assert.Equal(t, "09:00-18:00", day.Window.String())
	})

	t.Run("InvalidDate", func(t *testing.T) {
		_, err := cal.HoursFor(ctx, "2025-02-30")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("StoreError", func(t *testing.T) {
		broken := newFakeSource()
		broken.err = errors.New("disk gone")
		_, err := NewCalendar(broken, testRules(t)).HoursFor(ctx, "2025-11-18")
		assert.Error(t, err)
	})
}

func TestDayHours_IsWithinHours(t *testing.T) {
	cal := NewCalendar(newFakeSource(), testRules(t))
	ctx := context.Background()

	tests := []struct {
		date, time string
		want       bool
	}{
		{"2025-11-18", "09:00", true},
		{"2025-11-18", "16:30", true},
		{"2025-11-18", "16:45", false},
		{"2025-11-18", "08:00", false},
		{"2025-11-17", "10:00", false},
		{"2025-11-16", "10:00", false},
	}
	for _, tt := range tests {
		day, err := cal.HoursFor(ctx, tt.date)
		require.NoError(t, err)
		at, err := ParseClock(tt.time)
		require.NoError(t, err)
		assert.Equal(t, tt.want, day.IsWithinHours(at, 30), "%s %s", tt.date, tt.time)
	}
}

func TestCalendar_Suggest(t *testing.T) {
	src := newFakeSource()
	src.occupancy["2025-11-18"] = map[string]int{"10:00": 1}
	cal := NewCalendar(src, testRules(t))
	ctx := context.Background()

	t.Run("SkipsFullSlot", func(t *testing.T) {
		day, got, err := cal.Suggest(ctx, "2025-11-18", "10:00", 30, 3)
		require.NoError(t, err)
		assert.Equal(t, "09:00-17:00", day.Window.String())
		assert.Equal(t, []string{"10:30", "11:00", "11:30"}, got)
	})

	t.Run("StartsAtOpen", func(t *testing.T) {
		_, got, err := cal.Suggest(ctx, "2025-11-18", "08:00", 30, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:30"}, got)
	})

	t.Run("EmptyFromScansFromOpen", func(t *testing.T) {
		_, got, err := cal.Suggest(ctx, "2025-11-18", "", 30, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30"}, got)
	})

	t.Run("BadFrom", func(t *testing.T) {
		_, _, err := cal.Suggest(ctx, "2025-11-18", "9am", 30, 2)
		assert.ErrorIs(t, err, ErrInvalidClock)
	})

	t.Run("NothingAfterClose", func(t *testing.T) {
		_, got, err := cal.Suggest(ctx, "2025-11-18", "16:45", 30, 3)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("BlackoutSkipsOccupancy", func(t *testing.T) {
		before := src.occCalls
		day, got, err := cal.Suggest(ctx, "2025-11-17", "10:00", 30, 3)
		require.NoError(t, err)
		require.NotNil(t, day.Blackout)
		assert.Empty(t, got)
		assert.Equal(t, before, src.occCalls)
	})

	t.Run("Idempotent", func(t *testing.T) {
		_, a, err := cal.Suggest(ctx, "2025-11-18", "09:00", 30, 5)
		require.NoError(t, err)
		_, b, err := cal.Suggest(ctx, "2025-11-18", "09:00", 30, 5)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		a[0] = "mutated"
		assert.NotEqual(t, a[0], b[0])
	})
}

func TestRules_Suggest(t *testing.T) {
	rules := testRules(t)
	day := DayHours{Date: "2025-11-18", Open: true, Window: Window{Open: 9 * 60, Close: 17 * 60}}

	t.Run("StrictlyIncreasingWithinLimit", func(t *testing.T) {
		got := rules.Suggest(day, Occupancy{"09:30": 1, "11:00": 1}, 9*60, 30, 4)
		assert.Equal(t, []string{"09:00", "10:00", "10:30", "11:30"}, got)
	})

	t.Run("LongServiceMustFitBeforeClose", func(t *testing.T) {
		got := rules.Suggest(day, nil, 15*60, 90, 10)
		assert.Equal(t, []string{"15:00", "15:30"}, got)
	})

	t.Run("CapacityAboveOne", func(t *testing.T) {
		r := rules
		r.Capacity = 2
		got := r.Suggest(day, Occupancy{"09:00": 1, "09:30": 2}, 9*60, 30, 2)
		assert.Equal(t, []string{"09:00", "10:00"}, got)
	})

	t.Run("ZeroLimit", func(t *testing.T) {
		assert.Empty(t, rules.Suggest(day, nil, 9*60, 30, 0))
	})

	t.Run("ClosedDay", func(t *testing.T) {
		assert.Empty(t, rules.Suggest(DayHours{Date: "2025-11-16"}, nil, 9*60, 30, 3))
	})
}

func TestNewRules_Invalid(t *testing.T) {
	_, err := NewRules(config.SchedulingConfig{CapacityPerSlot: 1, SlotStepMinutes: 30, ServiceDurationMinutes: 30, DefaultHours: "bad"})
	assert.Error(t, err)
	_, err = NewRules(config.SchedulingConfig{SlotStepMinutes: 30, ServiceDurationMinutes: 30, DefaultHours: "09:00-18:00", Timezone: "UTC"})
	assert.Error(t, err)
}

func TestNewRules_SuggestionLimit(t *testing.T) {
	assert.Equal(t, config.DefaultSuggestionLimit, testRules(t).SuggestionLimit)

	off := 0
	rules, err := NewRules(config.SchedulingConfig{
		CapacityPerSlot: 1, SlotStepMinutes: 30, ServiceDurationMinutes: 30,
		SuggestionLimit: &off, DefaultHours: "09:00-18:00", Timezone: "UTC",
	})
	require.NoError(t, err)
	assert.Zero(t, rules.SuggestionLimit)
}
