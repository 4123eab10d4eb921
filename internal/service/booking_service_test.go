package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/models"
	"salonbook/internal/phone"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBook_AcceptThenSlotFull(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	first, err := f.booking.Book(ctx, request("Mohib", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, first.Outcome)
	require.NotNil(t, first.Appointment)
	assert.NotEmpty(t, first.Appointment.ID)
	assert.NotNil(t, first.Appointment.CustomerID)
	assert.Empty(t, first.Suggestions)

	second, err := f.booking.Book(ctx, request("Ana", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSlotFull, second.Outcome)
	assert.Equal(t, []string{"10:30", "11:00", "11:30"}, second.Suggestions)
	assert.Equal(t, "09:00", second.Open)
	assert.Equal(t, "17:00", second.Close)

	again, err := f.booking.Book(ctx, request("Ana", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, second.Suggestions, again.Suggestions, "unchanged occupancy yields the same suggestions")

	assert.Equal(t, []string{events.EventAppointmentBooked, events.EventBookingRejected, events.EventBookingRejected}, f.events.events)
}

func TestBook_SuggestionsDisabled(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	logger := zerolog.Nop()

	off := 0
	rules, err := schedule.NewRules(config.SchedulingConfig{
		CapacityPerSlot: 1, SlotStepMinutes: 30, ServiceDurationMinutes: 30,
		SuggestionLimit: &off, DefaultHours: "09:00-18:00", Timezone: "UTC",
	})
	require.NoError(t, err)
	svc := NewBookingService(f.db, schedule.NewCalendar(f.db, rules), nil, nil, &logger)

	_, err = svc.Book(ctx, request("Mohib", monday, "10:00"))
	require.NoError(t, err)
	d, err := svc.Book(ctx, request("Hina", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSlotFull, d.Outcome)
	assert.NotNil(t, d.Suggestions)
	assert.Empty(t, d.Suggestions)
}

func TestBook_Blackout(t *testing.T) {
	f := newFixture(t, 1)

	d, err := f.booking.Book(context.Background(), request("Mohib", thursday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlackout, d.Outcome)
	assert.Equal(t, "renovation", d.BlackoutNote)
	assert.Empty(t, d.Suggestions)
	assert.NotNil(t, d.Suggestions)
}

func TestBook_BlackoutSkipsOccupancy(t *testing.T) {
	f := newFixture(t, 1)
	svc, repo := f.countingBooking()

	d, err := svc.Book(context.Background(), request("Mohib", thursday, "10:00"))
	require.NoError(t, err)
	require.Equal(t, models.OutcomeBlackout, d.Outcome)
	assert.Equal(t, 1, repo.count("GetBlackout"))
	assert.Zero(t, repo.count("GetWorkingHours"))
	assert.Zero(t, repo.count("OccupancyForDate"))
	assert.Zero(t, repo.count("CreateAppointmentWithLock"))
}

func TestBook_RejectedBeforeStore(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	badPhone := request("Mohib", thursday, "10:00")
	badPhone.Phone = "12345"

	cases := map[string]struct {
		req  models.BookingRequest
		want models.Outcome
	}{
		"InvalidPhoneOnBlackoutDay": {badPhone, models.OutcomePhoneInvalid},
		"MissingName":               {models.BookingRequest{Service: "haircut", Date: monday, Time: "10:00"}, models.OutcomeIncomplete},
		"MissingService":            {models.BookingRequest{Name: "Mohib", Date: monday, Time: "10:00"}, models.OutcomeIncomplete},
		"BadDate":                   {request("Mohib", "2025-02-30", "10:00"), models.OutcomeIncomplete},
		"BadTime":                   {request("Mohib", monday, "3pm"), models.OutcomeIncomplete},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, repo := f.countingBooking()
			d, err := svc.Book(ctx, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.Outcome)
			assert.Empty(t, d.Suggestions)
			assert.Zero(t, repo.total(), "store calls: %v", repo.calls)
		})
	}
}

func TestBook_OutsideHours(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	early, err := f.booking.Book(ctx, request("Mohib", monday, "08:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOutsideHours, early.Outcome)
	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, early.Suggestions)

	// 16:45 + 30 minutes runs past close
	late, err := f.booking.Book(ctx, request("Mohib", monday, "16:45"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOutsideHours, late.Outcome)
	assert.Empty(t, late.Suggestions)

	closed, err := f.booking.Book(ctx, request("Mohib", sunday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOutsideHours, closed.Outcome)
	assert.Empty(t, closed.Open)
	assert.Empty(t, closed.Suggestions)
}

func TestBook_LastSlotOfDay(t *testing.T) {
	f := newFixture(t, 1)

	d, err := f.booking.Book(context.Background(), request("Mohib", monday, "16:30"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, d.Outcome)
}

func TestBook_Incomplete(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	cases := []models.BookingRequest{
		{Service: "haircut", Date: monday, Time: "10:00"},
		{Name: "Mohib", Date: monday, Time: "10:00"},
		{Name: "Mohib", Service: "haircut", Date: "YYYY-MM-DD", Time: "10:00"},
		{Name: "Mohib", Service: "haircut", Date: monday, Time: "3pm"},
		{Name: "Mohib", Service: "haircut", Date: monday},
	}
	for _, req := range cases {
		d, err := f.booking.Book(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeIncomplete, d.Outcome, "%+v", req)
		assert.Empty(t, d.Suggestions)
	}

	appts, err := f.booking.ListAppointments(ctx, models.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestBook_Phone(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	bad := request("Mohib", monday, "10:00")
	bad.Phone = "12345"
	d, err := f.booking.Book(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePhoneInvalid, d.Outcome)
	assert.Equal(t, phone.InvalidMessage, d.Message)

	// phone is checked before the blackout
	blackout := request("Mohib", thursday, "10:00")
	blackout.Phone = "abc"
	d, err = f.booking.Book(ctx, blackout)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePhoneInvalid, d.Outcome)

	good := request("Mohib", monday, "10:00")
	good.Phone = "+1 (825) 888-5611"
	d, err = f.booking.Book(ctx, good)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, d.Outcome)
	assert.Equal(t, "8258885611", d.Request.Phone)

	withoutPhone := request("Mohib", monday, "10:30")
	d2, err := f.booking.Book(ctx, withoutPhone)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, d2.Outcome)
	assert.NotEqual(t, *d.Appointment.CustomerID, *d2.Appointment.CustomerID, "no phone is a different identity")
}

func TestBook_ConcurrentNeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 3} {
		f := newFixture(t, capacity)
		ctx := context.Background()

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
			full     int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := f.booking.Book(ctx, request("Mohib", tuesday, "11:00"))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				switch d.Outcome {
				case models.OutcomeAccepted:
					accepted++
				case models.OutcomeSlotFull:
					full++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, capacity, accepted)
		assert.Equal(t, 10-capacity, full)

		count, err := f.db.CountAtSlot(ctx, tuesday, "11:00")
		require.NoError(t, err)
		assert.Equal(t, capacity, count)
	}
}

// racingRepo reports a free slot on the occupancy read but loses the insert.
type racingRepo struct {
	*database.DB
}

func (r racingRepo) CreateAppointmentWithLock(context.Context, *models.Appointment, int) error {
	return database.ErrSlotFull
}

func TestBook_StoreRejectsInsertAsSlotFull(t *testing.T) {
	f := newFixture(t, 1)
	logger := zerolog.New(io.Discard)
	repo := racingRepo{f.db}
	svc := NewBookingService(repo, schedule.NewCalendar(repo, f.booking.calendar.Rules()), nil, nil, &logger)

	d, err := svc.Book(context.Background(), request("Mohib", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSlotFull, d.Outcome)
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, d.Suggestions)
}

func TestBook_StoreFailure(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "closed.db"), &logger)
	require.NoError(t, err)
	rules, err := schedule.NewRules(config.SchedulingConfig{
		CapacityPerSlot: 1, SlotStepMinutes: 30, ServiceDurationMinutes: 30,
		DefaultHours: "09:00-18:00", Timezone: "UTC",
	})
	require.NoError(t, err)
	svc := NewBookingService(db, schedule.NewCalendar(db, rules), nil, nil, &logger)
	db.Close()

	_, err = svc.Book(context.Background(), request("Mohib", monday, "10:00"))
	assert.Error(t, err)
}

func TestBook_EnqueuesSync(t *testing.T) {
	f := newFixture(t, 1)
	worker := new(mockSyncWorker)
	f.booking.sheetsWorker = worker
	ctx := context.Background()

	worker.On("EnqueueTask", mock.Anything, models.SyncTaskUpsert, mock.AnythingOfType("*models.Appointment")).Return(nil).Once()
	d, err := f.booking.Book(ctx, request("Mohib", monday, "10:00"))
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, d.Outcome)

	worker.On("EnqueueTask", mock.Anything, models.SyncTaskDelete, mock.AnythingOfType("*models.Appointment")).Return(errors.New("queue full")).Once()
	removed, err := f.booking.Cancel(ctx, d.Appointment.ID)
	require.NoError(t, err, "sync failures do not fail the cancellation")
	assert.Equal(t, d.Appointment.ID, removed.ID)

	worker.AssertExpectations(t)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	d, err := f.booking.Book(ctx, request("Mohib", monday, "10:00"))
	require.NoError(t, err)

	removed, err := f.booking.Cancel(ctx, d.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mohib", removed.Name)

	_, err = f.booking.Cancel(ctx, d.Appointment.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	// the freed seat can be booked again
	again, err := f.booking.Book(ctx, request("Ana", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, again.Outcome)
	assert.Contains(t, f.events.events, events.EventAppointmentCancelled)
}

func TestSlotAvailable(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	ok, err := f.booking.SlotAvailable(ctx, monday, "10:00")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.booking.Book(ctx, request("Mohib", monday, "10:00"))
	require.NoError(t, err)

	ok, err = f.booking.SlotAvailable(ctx, monday, "10:00")
	require.NoError(t, err)
	assert.False(t, ok)

	// hours and blackouts are not consulted
	ok, err = f.booking.SlotAvailable(ctx, thursday, "23:00")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.booking.SlotAvailable(ctx, "tomorrow", "10:00")
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestSuggest(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.booking.Book(ctx, request("Mohib", monday, "09:00"))
	require.NoError(t, err)

	slots, err := f.booking.Suggest(ctx, monday, "")
	require.NoError(t, err)
	assert.False(t, slots.Closed)
	assert.Equal(t, "09:00", slots.Open)
	assert.Equal(t, []string{"09:30", "10:00", "10:30"}, slots.Suggestions)

	slots, err = f.booking.Suggest(ctx, thursday, "10:00")
	require.NoError(t, err)
	assert.True(t, slots.Closed)
	assert.Equal(t, "renovation", slots.BlackoutNote)
	assert.Empty(t, slots.Suggestions)

	_, err = f.booking.Suggest(ctx, monday, "9am")
	assert.ErrorIs(t, err, ErrInvalidSlot)
}
