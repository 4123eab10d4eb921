package domain

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrRateLimited is returned when a client exceeds its message budget.
var ErrRateLimited = errors.New("rate limit exceeded")

type Repository interface {
	GetBlackout(ctx context.Context, date string) (*models.Blackout, error)
	GetWorkingHours(ctx context.Context, dayOfWeek int) (*models.WorkingHours, error)
	OccupancyForDate(ctx context.Context, date string) (map[string]int, error)

	CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment, capacity int) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
	CountAtSlot(ctx context.Context, date, at string) (int, error)
	DeleteAppointment(ctx context.Context, id string) error

	FindOrCreateCustomer(ctx context.Context, name, phone string) (*models.Customer, error)

	ListWorkingHours(ctx context.Context) ([]models.WorkingHours, error)
	UpsertWorkingHours(ctx context.Context, h models.WorkingHours) error
	DeleteWorkingHours(ctx context.Context, dayOfWeek int) error
	ListBlackouts(ctx context.Context) ([]models.Blackout, error)
	UpsertBlackout(ctx context.Context, b models.Blackout) error
	DeleteBlackout(ctx context.Context, date string) error
	ReplaceCalendar(ctx context.Context, hours []models.WorkingHours, blackouts []models.Blackout) error

	PingContext(ctx context.Context) error
}

type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	SaveSession(ctx context.Context, session *models.ChatSession) error
	ClearSession(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type IntentExtractor interface {
	Extract(ctx context.Context, message string) (*models.Extraction, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, appt *models.Appointment) error
	DeleteAppointmentRow(ctx context.Context, appointmentID string) error
	ReplaceAppointmentsSheet(ctx context.Context, appts []models.Appointment) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, appt *models.Appointment) error
}

type BookingService interface {
	Book(ctx context.Context, req models.BookingRequest) (*models.BookingDecision, error)
	Cancel(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
	SlotAvailable(ctx context.Context, date, at string) (bool, error)
	Suggest(ctx context.Context, date, from string) (*models.DaySlots, error)
}

type CalendarService interface {
	ListHours(ctx context.Context) ([]models.WorkingHours, error)
	SetHours(ctx context.Context, h models.WorkingHours) error
	DeleteHours(ctx context.Context, dayOfWeek int) error
	ListBlackouts(ctx context.Context) ([]models.Blackout, error)
	SetBlackout(ctx context.Context, b models.Blackout) error
	DeleteBlackout(ctx context.Context, date string) error
	Seed(ctx context.Context, hours []models.WorkingHours, blackouts []models.Blackout, replace bool) error
}

type ChatService interface {
	Handle(ctx context.Context, sessionID, message string) (*models.ChatResponse, error)
	ChooseSlot(ctx context.Context, sessionID, at string) (*models.ChatResponse, error)
	Reset(ctx context.Context, sessionID string) error
}

type TelegramService interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	ClearInlineKeyboard(chatID int64, messageID int) error
	SendTyping(chatID int64) error
	AnswerCallback(callbackID, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
