package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Dates used across tests.
const (
	monday   = "2025-11-17"
	tuesday  = "2025-11-18"
	thursday = "2025-11-20"
	sunday   = "2025-11-16"
)

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, appt *models.Appointment) error {
	return m.Called(ctx, taskType, appt).Error(0)
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) PublishJSON(eventType string, _ interface{}) error {
	p.events = append(p.events, eventType)
	return nil
}

type fixture struct {
	db       *database.DB
	booking  *BookingService
	calendar *CalendarService
	events   *recordingPublisher
}

// newFixture opens a store with Mon-Fri 09:00-17:00 hours and a renovation
// blackout on Thursday 2025-11-20.
func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "salonbook.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rules, err := schedule.NewRules(config.SchedulingConfig{
		CapacityPerSlot:        capacity,
		SlotStepMinutes:        30,
		ServiceDurationMinutes: 30,
		DefaultHours:           "09:00-18:00",
		Timezone:               "UTC",
		MissingHoursPolicy:     models.MissingHoursClosed,
	})
	require.NoError(t, err)

	calendarSvc := NewCalendarService(db, &logger)
	var hours []models.WorkingHours
	for dow := 1; dow <= 5; dow++ {
		hours = append(hours, models.WorkingHours{DayOfWeek: dow, Open: "09:00", Close: "17:00"})
	}
	require.NoError(t, calendarSvc.Seed(context.Background(), hours,
		[]models.Blackout{{Date: thursday, Note: "renovation"}}, true))

	pub := &recordingPublisher{}
	booking := NewBookingService(db, schedule.NewCalendar(db, rules), pub, nil, &logger)

	return &fixture{db: db, booking: booking, calendar: calendarSvc, events: pub}
}

func request(name, date, at string) models.BookingRequest {
	return models.BookingRequest{Name: name, Service: "haircut", Date: date, Time: at}
}

// countingRepo records which store calls a booking decision made.
type countingRepo struct {
	*database.DB

	mu    sync.Mutex
	calls map[string]int
}

func newCountingRepo(db *database.DB) *countingRepo {
	return &countingRepo{DB: db, calls: map[string]int{}}
}

func (r *countingRepo) record(name string) {
	r.mu.Lock()
	r.calls[name]++
	r.mu.Unlock()
}

func (r *countingRepo) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *countingRepo) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *countingRepo) GetBlackout(ctx context.Context, date string) (*models.Blackout, error) {
	r.record("GetBlackout")
	return r.DB.GetBlackout(ctx, date)
}

func (r *countingRepo) GetWorkingHours(ctx context.Context, dayOfWeek int) (*models.WorkingHours, error) {
	r.record("GetWorkingHours")
	return r.DB.GetWorkingHours(ctx, dayOfWeek)
}

func (r *countingRepo) OccupancyForDate(ctx context.Context, date string) (map[string]int, error) {
	r.record("OccupancyForDate")
	return r.DB.OccupancyForDate(ctx, date)
}

func (r *countingRepo) CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment, capacity int) error {
	r.record("CreateAppointmentWithLock")
	return r.DB.CreateAppointmentWithLock(ctx, appt, capacity)
}

func (r *countingRepo) CountAtSlot(ctx context.Context, date, at string) (int, error) {
	r.record("CountAtSlot")
	return r.DB.CountAtSlot(ctx, date, at)
}

func (r *countingRepo) FindOrCreateCustomer(ctx context.Context, name, phone string) (*models.Customer, error) {
	r.record("FindOrCreateCustomer")
	return r.DB.FindOrCreateCustomer(ctx, name, phone)
}

// countingBooking builds a booking service over f's store that counts store calls.
func (f *fixture) countingBooking() (*BookingService, *countingRepo) {
	logger := zerolog.Nop()
	repo := newCountingRepo(f.db)
	return NewBookingService(repo, schedule.NewCalendar(repo, f.booking.calendar.Rules()), nil, nil, &logger), repo
}
