package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/phone"
	"salonbook/internal/schedule"
	"salonbook/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// ErrInvalidSlot is returned when a date or time query parameter cannot be parsed.
var ErrInvalidSlot = errors.New("invalid date or time")

type BookingService struct {
	repo         domain.Repository
	calendar     *schedule.Calendar
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger
}

func NewBookingService(repo domain.Repository, calendar *schedule.Calendar, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:         repo,
		calendar:     calendar,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
	}
}

// Book runs a request through the conflict checks in order: completeness,
// phone, blackout, opening hours, capacity. The first failing check decides
// the outcome. A returned error means the store failed and nothing was
// written.
func (s *BookingService) Book(ctx context.Context, req models.BookingRequest) (*models.BookingDecision, error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "booking.resolve")
	defer span.End()

	decision, err := s.resolve(ctx, normalizeRequest(req))
	if err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("date", req.Date).Str("time", req.Time).Msg("Booking failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.outcome", string(decision.Outcome)),
		attribute.Int("booking.suggestions", len(decision.Suggestions)),
	)
	metrics.ObserveBooking(string(decision.Outcome), len(decision.Suggestions), time.Since(started))

	switch {
	case decision.Outcome == models.OutcomeAccepted:
		s.logger.Info().
			Str("appointment_id", decision.Appointment.ID).
			Str("date", decision.Appointment.Date).
			Str("time", decision.Appointment.Time).
			Msg("Appointment booked")
		s.publishAppointment(events.EventAppointmentBooked, decision.Appointment)
		s.enqueueSync(ctx, models.SyncTaskUpsert, decision.Appointment)
	case decision.Outcome.IsConflict():
		s.logger.Info().
			Str("outcome", string(decision.Outcome)).
			Str("date", decision.Request.Date).
			Str("time", decision.Request.Time).
			Strs("suggestions", decision.Suggestions).
			Msg("Booking rejected")
		s.publish(events.EventBookingRejected, events.RejectionEventPayload{
			Outcome:     string(decision.Outcome),
			Date:        decision.Request.Date,
			Time:        decision.Request.Time,
			Service:     decision.Request.Service,
			Suggestions: decision.Suggestions,
		})
	}

	return decision, nil
}

func (s *BookingService) resolve(ctx context.Context, req models.BookingRequest) (*models.BookingDecision, error) {
	rules := s.calendar.Rules()
	decision := &models.BookingDecision{Request: req, Suggestions: []string{}}

	// 1. Incomplete
	if req.Name == "" || req.Service == "" {
		decision.Outcome = models.OutcomeIncomplete
		return decision, nil
	}
	if _, err := schedule.ParseDate(req.Date, rules.Location); err != nil {
		decision.Outcome = models.OutcomeIncomplete
		return decision, nil
	}
	at, err := schedule.ParseClock(req.Time)
	if err != nil {
		decision.Outcome = models.OutcomeIncomplete
		return decision, nil
	}

	// 2. Phone
	if req.Phone != "" {
		result := phone.Validate(req.Phone)
		if !result.Valid {
			decision.Outcome = models.OutcomePhoneInvalid
			decision.Message = result.Message
			return decision, nil
		}
		req.Phone = result.Normalized
		decision.Request.Phone = result.Normalized
	}

	// 3. Blackout
	day, err := s.calendar.HoursFor(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	if day.Blackout != nil {
		decision.Outcome = models.OutcomeBlackout
		decision.BlackoutNote = day.Blackout.Note
		return decision, nil
	}

	// 4. Outside hours
	if day.Closed() {
		decision.Outcome = models.OutcomeOutsideHours
		return decision, nil
	}
	decision.Open = day.Window.Open.String()
	decision.Close = day.Window.Close.String()

	occ, err := s.calendar.Occupancy(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	if !day.IsWithinHours(at, rules.DurationMinutes) {
		decision.Outcome = models.OutcomeOutsideHours
		decision.Suggestions = rules.Suggest(day, occ, at, rules.DurationMinutes, rules.SuggestionLimit)
		return decision, nil
	}

	// 5. Slot full
	if occ.Count(at) >= rules.Capacity {
		decision.Outcome = models.OutcomeSlotFull
		decision.Suggestions = rules.Suggest(day, occ, at, rules.DurationMinutes, rules.SuggestionLimit)
		return decision, nil
	}

	// 6. Accept
	appt := &models.Appointment{
		Name:    req.Name,
		Phone:   req.Phone,
		Service: req.Service,
		Date:    req.Date,
		Time:    at.String(),
	}
	err = s.repo.CreateAppointmentWithLock(ctx, appt, rules.Capacity)
	if errors.Is(err, database.ErrSlotFull) {
		// Lost the race for the last seat.
		occ, err = s.calendar.Occupancy(ctx, req.Date)
		if err != nil {
			return nil, err
		}
		decision.Outcome = models.OutcomeSlotFull
		decision.Suggestions = rules.Suggest(day, occ, at, rules.DurationMinutes, rules.SuggestionLimit)
		return decision, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save appointment: %w", err)
	}

	decision.Outcome = models.OutcomeAccepted
	decision.Appointment = appt
	return decision, nil
}

func normalizeRequest(req models.BookingRequest) models.BookingRequest {
	return models.BookingRequest{
		Name:    strings.TrimSpace(req.Name),
		Service: strings.TrimSpace(req.Service),
		Date:    strings.TrimSpace(req.Date),
		Time:    strings.TrimSpace(req.Time),
		Phone:   strings.TrimSpace(req.Phone),
	}
}

// Cancel deletes an appointment and returns the removed row.
func (s *BookingService) Cancel(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", id).Msg("Appointment cancelled")
	s.publishAppointment(events.EventAppointmentCancelled, appt)
	s.enqueueSync(ctx, models.SyncTaskDelete, appt)
	return appt, nil
}

func (s *BookingService) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	return s.repo.ListAppointments(ctx, filter)
}

// SlotAvailable reports whether the exact slot is below capacity. Hours and
// blackouts are not consulted.
func (s *BookingService) SlotAvailable(ctx context.Context, date, at string) (bool, error) {
	if _, err := schedule.ParseDate(date, s.calendar.Rules().Location); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	clock, err := schedule.ParseClock(at)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}

	count, err := s.repo.CountAtSlot(ctx, date, clock.String())
	if err != nil {
		return false, err
	}
	return count < s.calendar.Rules().Capacity, nil
}

// Suggest describes the open start times of date at or after from. An empty
// from scans the whole day.
func (s *BookingService) Suggest(ctx context.Context, date, from string) (*models.DaySlots, error) {
	rules := s.calendar.Rules()
	if _, err := schedule.ParseDate(date, rules.Location); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	if from != "" {
		if _, err := schedule.ParseClock(from); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
		}
	}

	day, suggestions, err := s.calendar.Suggest(ctx, date, from, rules.DurationMinutes, rules.SuggestionLimit)
	if err != nil {
		return nil, err
	}

	slots := &models.DaySlots{Date: date, Closed: day.Closed(), Suggestions: suggestions}
	if day.Blackout != nil {
		slots.BlackoutNote = day.Blackout.Note
	}
	if !day.Closed() {
		slots.Open = day.Window.Open.String()
		slots.Close = day.Window.Close.String()
	}
	return slots, nil
}

func (s *BookingService) publishAppointment(eventType string, appt *models.Appointment) {
	payload := events.AppointmentEventPayload{
		AppointmentID: appt.ID,
		Name:          appt.Name,
		Service:       appt.Service,
		Date:          appt.Date,
		Time:          appt.Time,
		CreatedAt:     appt.CreatedAt,
	}
	if appt.CustomerID != nil {
		payload.CustomerID = *appt.CustomerID
	}
	s.publish(eventType, payload)
}

func (s *BookingService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, appt *models.Appointment) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, appt); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
