package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptyMessage is returned for a chat message without text.
	ErrEmptyMessage = errors.New("message is required")
	// ErrNoSession is returned when an operation needs a chat session.
	ErrNoSession = errors.New("session id is required")
)

const (
	// ApologyReply is sent when the intent extractor is unavailable.
	ApologyReply = "Sorry, I couldn't process your request."
	// ExpiredDraftReply is sent when a picked slot has no booking draft behind it.
	ExpiredDraftReply = "I no longer have your booking details. Please tell me your name, the service and the date again."
)

// ChatService turns chat messages into booking attempts. Each session keeps
// a draft so details given over several messages add up to one request.
type ChatService struct {
	booking   domain.BookingService
	extractor domain.IntentExtractor
	sessions  domain.SessionRepository
	limit     int
	window    time.Duration
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewChatService(booking domain.BookingService, extractor domain.IntentExtractor, sessions domain.SessionRepository, cfg config.ChatConfig, logger *zerolog.Logger) *ChatService {
	return &ChatService{
		booking:   booking,
		extractor: extractor,
		sessions:  sessions,
		limit:     cfg.RateLimitMessages,
		window:    time.Duration(cfg.RateLimitWindow) * time.Second,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes one message. sessionID may be empty, in which case no
// draft is kept and no per-session rate limit applies.
func (s *ChatService) Handle(ctx context.Context, sessionID, message string) (*models.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	if err := s.checkRateLimit(ctx, sessionID); err != nil {
		return nil, err
	}

	resp := &models.ChatResponse{Suggestions: []string{}}

	extraction, err := s.extractor.Extract(ctx, message)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Intent extraction failed")
		resp.Reply = ApologyReply
		return resp, nil
	}
	resp.Reply = extraction.Reply
	resp.Parsed = extraction.Payload

	if extraction.Payload == nil {
		metrics.IncIntent("")
		return resp, nil
	}
	metrics.IncIntent(extraction.Payload.Intent)

	return s.apply(ctx, sessionID, resp, *extraction.Payload)
}

// ChooseSlot books the session's draft at a time the customer picked from
// earlier suggestions.
func (s *ChatService) ChooseSlot(ctx context.Context, sessionID, at string) (*models.ChatResponse, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if err := s.checkRateLimit(ctx, sessionID); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Draft.Intent != models.IntentBook {
		return &models.ChatResponse{Reply: ExpiredDraftReply, Suggestions: []string{}}, nil
	}

	payload := models.IntentPayload{Intent: models.IntentBook, Time: strings.TrimSpace(at)}
	resp := &models.ChatResponse{Reply: ExpiredDraftReply, Parsed: &payload, Suggestions: []string{}}
	metrics.IncIntent(payload.Intent)
	return s.apply(ctx, sessionID, resp, payload)
}

// Reset forgets the session's booking draft.
func (s *ChatService) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	return s.sessions.ClearSession(ctx, sessionID)
}

// apply merges payload into the session draft and runs the resolver for
// booking intents.
func (s *ChatService) apply(ctx context.Context, sessionID string, resp *models.ChatResponse, payload models.IntentPayload) (*models.ChatResponse, error) {
	draft, session := s.mergeDraft(ctx, sessionID, payload)

	if draft.Intent == models.IntentCancel {
		s.clearSession(ctx, sessionID)
		return resp, nil
	}
	s.saveSession(ctx, session)
	if draft.Intent != models.IntentBook {
		return resp, nil
	}

	decision, err := s.booking.Book(ctx, draft.BookingRequest())
	if err != nil {
		return nil, err
	}

	resp.Outcome = decision.Outcome
	resp.Conflict = decision.Outcome.IsConflict()
	resp.Suggestions = decision.Suggestions
	if text := replyFor(decision); text != "" {
		resp.Reply = text
	}

	switch decision.Outcome {
	case models.OutcomeAccepted:
		resp.Saved = decision.Appointment
		s.clearSession(ctx, sessionID)
	case models.OutcomePhoneInvalid:
		// drop the rejected number so the next message can retry without it
		if session != nil {
			session.Draft.Phone = ""
			s.saveSession(ctx, session)
		}
	}
	return resp, nil
}

func (s *ChatService) checkRateLimit(ctx context.Context, sessionID string) error {
	if sessionID == "" || s.limit <= 0 {
		return nil
	}
	allowed, err := s.sessions.CheckRateLimit(ctx, sessionID, s.limit, s.window)
	if err != nil {
		// fail open
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Rate limit check failed")
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

// mergeDraft folds the payload into the stored draft. Without a session the
// payload is used as is.
func (s *ChatService) mergeDraft(ctx context.Context, sessionID string, payload models.IntentPayload) (models.IntentPayload, *models.ChatSession) {
	if sessionID == "" {
		return payload, nil
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load chat session")
	}
	if session == nil {
		session = &models.ChatSession{SessionID: sessionID}
	}
	session.Merge(payload)
	session.UpdatedAt = s.now().UTC()
	return session.Draft, session
}

func (s *ChatService) saveSession(ctx context.Context, session *models.ChatSession) {
	if session == nil {
		return
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.SessionID).Msg("Failed to save chat session")
	}
}

func (s *ChatService) clearSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.sessions.ClearSession(ctx, sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to clear chat session")
	}
}

// replyFor words a booking decision for the customer. Incomplete requests
// keep the assistant's own follow-up question, so it returns "".
func replyFor(d *models.BookingDecision) string {
	req := d.Request
	switch d.Outcome {
	case models.OutcomeAccepted:
		return fmt.Sprintf("✅ I've booked a %s for %s on %s at %s.", req.Service, req.Name, req.Date, d.Appointment.Time)
	case models.OutcomePhoneInvalid:
		return d.Message
	case models.OutcomeBlackout:
		note := d.BlackoutNote
		if note == "" {
			note = "a blackout day"
		}
		return fmt.Sprintf("❌ We're closed on %s due to: %s.\nThere are no available times that day. Please choose another date.", req.Date, note)
	case models.OutcomeOutsideHours:
		if d.Open == "" {
			return fmt.Sprintf("❌ We're closed on %s.\nPlease choose another date.", req.Date)
		}
		text := fmt.Sprintf("❌ We're closed at %s on %s.\nOur hours that day are %s–%s.\n", req.Time, req.Date, d.Open, d.Close)
		if len(d.Suggestions) == 0 {
			return text + "There are no open times left that day. Please pick another date."
		}
		return text + "💡 Here are some available times:\n" + bullets(d.Suggestions)
	case models.OutcomeSlotFull:
		text := fmt.Sprintf("❌ That time is fully booked on %s.\n", req.Date)
		if len(d.Suggestions) == 0 {
			return text + "There are no available times remaining that day. Please choose another date."
		}
		return text + "Here are the nearest available times:\n" + bullets(d.Suggestions)
	default:
		return ""
	}
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "• " + it
	}
	return strings.Join(lines, "\n")
}
