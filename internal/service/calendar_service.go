package service

import (
	"context"
	"errors"
	"fmt"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
)

// ErrInvalidCalendar wraps validation failures of hours and blackout rows.
var ErrInvalidCalendar = errors.New("invalid calendar entry")

// CalendarService maintains the weekly hours and blackout dates.
type CalendarService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewCalendarService(repo domain.Repository, logger *zerolog.Logger) *CalendarService {
	return &CalendarService{repo: repo, logger: logger}
}

func (s *CalendarService) ListHours(ctx context.Context) ([]models.WorkingHours, error) {
	return s.repo.ListWorkingHours(ctx)
}

func (s *CalendarService) SetHours(ctx context.Context, h models.WorkingHours) error {
	if err := validateHours([]models.WorkingHours{h}); err != nil {
		return err
	}
	if err := s.repo.UpsertWorkingHours(ctx, h); err != nil {
		return err
	}
	s.logger.Info().Int("dow", h.DayOfWeek).Str("open", h.Open).Str("close", h.Close).Msg("Working hours updated")
	return nil
}

func (s *CalendarService) DeleteHours(ctx context.Context, dayOfWeek int) error {
	if err := s.repo.DeleteWorkingHours(ctx, dayOfWeek); err != nil {
		return err
	}
	s.logger.Info().Int("dow", dayOfWeek).Msg("Working hours removed")
	return nil
}

func (s *CalendarService) ListBlackouts(ctx context.Context) ([]models.Blackout, error) {
	return s.repo.ListBlackouts(ctx)
}

func (s *CalendarService) SetBlackout(ctx context.Context, b models.Blackout) error {
	if err := config.ValidateBlackouts([]models.Blackout{b}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}
	if err := s.repo.UpsertBlackout(ctx, b); err != nil {
		return err
	}
	s.logger.Info().Str("date", b.Date).Str("note", b.Note).Msg("Blackout set")
	return nil
}

func (s *CalendarService) DeleteBlackout(ctx context.Context, date string) error {
	if err := s.repo.DeleteBlackout(ctx, date); err != nil {
		return err
	}
	s.logger.Info().Str("date", date).Msg("Blackout removed")
	return nil
}

// Seed writes configured calendar rows. With replace the stored rows are
// swapped out atomically; otherwise rows are upserted one by one.
func (s *CalendarService) Seed(ctx context.Context, hours []models.WorkingHours, blackouts []models.Blackout, replace bool) error {
	if err := validateHours(hours); err != nil {
		return err
	}
	if err := config.ValidateBlackouts(blackouts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	if replace {
		return s.repo.ReplaceCalendar(ctx, hours, blackouts)
	}
	for _, h := range hours {
		if err := s.repo.UpsertWorkingHours(ctx, h); err != nil {
			return err
		}
	}
	for _, b := range blackouts {
		if err := s.repo.UpsertBlackout(ctx, b); err != nil {
			return err
		}
	}
	s.logger.Info().Int("hours", len(hours)).Int("blackouts", len(blackouts)).Msg("Calendar seeded")
	return nil
}

// validateHours also requires the zero-padded HH:MM form the calendar reads back.
func validateHours(hours []models.WorkingHours) error {
	if err := config.ValidateHours(hours); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}
	for _, h := range hours {
		if _, err := schedule.NewWindow(h.Open, h.Close); err != nil {
			return fmt.Errorf("%w: hours for day %d: %v", ErrInvalidCalendar, h.DayOfWeek, err)
		}
	}
	return nil
}
