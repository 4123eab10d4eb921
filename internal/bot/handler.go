package bot

import (
	"context"
	"errors"
	"strings"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	greeting = "👋 Hi! I can book your salon appointment.\n" +
		"Tell me your name, the service, the date and the time, for example:\n" +
		"\"Haircut for Mohib next Monday at 3 PM\"."
	helpText = "Send your booking request in plain words. I'll ask for anything missing.\n" +
		"/cancel forgets the booking we're working on."
	rateLimitedReply = "⚠️ You're sending messages too quickly. Please wait a moment."
	unsupportedReply = "I can only read text messages."
	cancelledReply   = "Okay, I've forgotten that booking request."
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	l := zerolog.Ctx(ctx)

	l.Debug().Int64("chat_id", chatID).Str("text", text).Msg("Handling message")

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if text == "" {
		b.send(chatID, unsupportedReply)
		return
	}

	if err := b.tgService.SendTyping(chatID); err != nil {
		l.Debug().Err(err).Msg("typing indicator failed")
	}

	resp, err := b.chat.Handle(ctx, SessionID(chatID), text)
	b.reply(ctx, chatID, resp, err)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.send(chatID, greeting)
	case "help":
		b.send(chatID, helpText)
	case "cancel":
		if err := b.chat.Reset(ctx, SessionID(chatID)); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to reset chat session")
			b.send(chatID, service.ApologyReply)
			return
		}
		b.send(chatID, cancelledReply)
	default:
		b.send(chatID, helpText)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	l := zerolog.Ctx(ctx)
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	at, ok := parseSlotCallback(cq.Data)
	if !ok {
		l.Warn().Str("data", cq.Data).Msg("Unknown callback data")
		b.answer(ctx, cq.ID, "")
		return
	}

	b.answer(ctx, cq.ID, "Booking "+at+"…")
	if err := b.tgService.ClearInlineKeyboard(chatID, cq.Message.MessageID); err != nil {
		l.Debug().Err(err).Msg("failed to clear keyboard")
	}

	resp, err := b.chat.ChooseSlot(ctx, SessionID(chatID), at)
	b.reply(ctx, chatID, resp, err)
}

// reply sends the chat response, attaching slot buttons when the customer
// can pick an alternative time.
func (b *Bot) reply(ctx context.Context, chatID int64, resp *models.ChatResponse, err error) {
	l := zerolog.Ctx(ctx)
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		b.send(chatID, rateLimitedReply)
		return
	case err != nil:
		l.Error().Err(err).Int64("chat_id", chatID).Msg("Chat handling failed")
		b.send(chatID, service.ApologyReply)
		return
	case resp == nil:
		return
	}

	if resp.Conflict && len(resp.Suggestions) > 0 {
		if _, err := b.tgService.SendWithInlineKeyboard(chatID, resp.Reply, suggestionKeyboard(resp.Suggestions)); err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
		}
		return
	}
	b.send(chatID, resp.Reply)
}

func (b *Bot) send(chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.tgService.AnswerCallback(callbackID, text); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("failed to answer callback")
	}
}
