package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/intent"
	"salonbook/internal/models"
	"salonbook/internal/repository"
	"salonbook/internal/schedule"
	"salonbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	monday   = "2025-11-17"
	thursday = "2025-11-20"
)

type testAPI struct {
	db      *database.DB
	booking *service.BookingService
	server  *HTTPServer
	ts      *httptest.Server
}

// newTestAPI wires the real services over a temp sqlite store with Mon-Fri
// 09:00-17:00 hours and a blackout on Thursday.
func newTestAPI(t *testing.T, cfg config.APIConfig) *testAPI {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rules, err := schedule.NewRules(config.SchedulingConfig{
		CapacityPerSlot:        1,
		SlotStepMinutes:        30,
		ServiceDurationMinutes: 30,
		DefaultHours:           "09:00-18:00",
		Timezone:               "UTC",
		MissingHoursPolicy:     models.MissingHoursClosed,
	})
	require.NoError(t, err)

	calendar := service.NewCalendarService(db, &logger)
	var hours []models.WorkingHours
	for dow := 1; dow <= 5; dow++ {
		hours = append(hours, models.WorkingHours{DayOfWeek: dow, Open: "09:00", Close: "17:00"})
	}
	require.NoError(t, calendar.Seed(context.Background(), hours,
		[]models.Blackout{{Date: thursday, Note: "renovation"}}, true))

	booking := service.NewBookingService(db, schedule.NewCalendar(db, rules), nil, nil, &logger)
	chat := service.NewChatService(booking, intent.NoopExtractor{}, repository.NewMemorySessionRepository(time.Hour),
		config.ChatConfig{RateLimitMessages: 3, RateLimitWindow: 60}, &logger)

	srv := NewHTTPServer(cfg, Services{
		Booking:  booking,
		Calendar: calendar,
		Chat:     chat,
		Ready:    db.PingContext,
		Capacity: rules.Capacity,
	}, &logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{db: db, booking: booking, server: srv, ts: ts}
}

func (a *testAPI) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) book(t *testing.T, name, date, at string) *models.Appointment {
	t.Helper()
	d, err := a.booking.Book(context.Background(), models.BookingRequest{Name: name, Service: "haircut", Date: date, Time: at})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if d.Outcome != models.OutcomeAccepted {
		t.Fatalf("expected accepted, got %s", d.Outcome)
	}
	return d.Appointment
}

// bookingMessage is a chat message carrying a structured payload the
// no-model extractor understands.
func bookingMessage(payload string) string {
	return "please book\n```json\n" + payload + "\n```"
}
