package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

const businessName = "Demo Salon"

// Extractor turns a free-form chat message into an Extraction by asking the
// model for a short reply followed by a fenced JSON block.
type Extractor struct {
	llm         LLMClient
	loc         *time.Location
	temperature float32
	timeout     time.Duration
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewExtractor(llm LLMClient, loc *time.Location, temperature float32, timeout time.Duration, logger *zerolog.Logger) *Extractor {
	if loc == nil {
		loc = time.Local
	}
	return &Extractor{
		llm:         llm,
		loc:         loc,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

// New builds the extractor selected by cfg.Provider. The returned close
// function releases the model client and is never nil.
func New(ctx context.Context, cfg config.IntentConfig, loc *time.Location, logger *zerolog.Logger) (domain.IntentExtractor, func() error, error) {
	switch cfg.Provider {
	case "none":
		return NoopExtractor{}, func() error { return nil }, nil
	case "gemini":
		client, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		timeout := time.Duration(cfg.TimeoutSec) * time.Second
		return NewExtractor(client, loc, cfg.Temperature, timeout, logger), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown intent provider %q", cfg.Provider)
	}
}

func (e *Extractor) Extract(ctx context.Context, message string) (*models.Extraction, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	messages := append(fewShots(), Message{Role: RoleUser, Content: message})
	resp, err := e.llm.Complete(ctx, Request{
		System:      e.systemPrompt(),
		Messages:    messages,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract intent: %w", err)
	}

	text, payload := ParseReply(resp.Text)
	if payload == nil && e.logger != nil {
		e.logger.Debug().Str("reply", resp.Text).Msg("No usable intent payload in model reply")
	}
	return &models.Extraction{Reply: text, Payload: payload}, nil
}

func (e *Extractor) systemPrompt() string {
	today := e.now().In(e.loc).Format(models.DateLayout)
	lines := []string{
		fmt.Sprintf("Today's date is %s and the timezone is %s.", today, e.loc.String()),
		fmt.Sprintf("You are the booking assistant for %s. You CAN book appointments.", businessName),
		"Your job is to extract name, service, date, time and phone from messages.",
		"If something is missing, ask ONE clear follow-up question.",
		"Always respond in TWO parts:",
		"1) A short, friendly human message confirming or asking a question.",
		"2) A fenced JSON block following this schema exactly:",
		"```json",
		`{ "intent": "book|clarify|cancel|unknown", "name": "", "service": "", "date": "YYYY-MM-DD", "time": "HH:MM", "phone": "" }`,
		"```",
		"Rules:",
		"- Use 24-hour time (HH:MM).",
		"- Use ISO dates (YYYY-MM-DD).",
		"- Resolve relative dates such as 'tomorrow' using today's date above.",
		"- If the user only adds NEW information, fill only that field and leave the others as empty strings.",
		"- Never invent a service, date, time or phone. If unsure, leave the field empty.",
		`- "phone" is the customer's phone number as written, or "" when not given.`,
		"- Never say you cannot book appointments.",
	}
	return strings.Join(lines, "\n")
}

func fewShots() []Message {
	return []Message{
		{Role: RoleUser, Content: "Book a haircut tomorrow at 3 PM for Mohib"},
		{Role: RoleAssistant, Content: "Booking a haircut for Mohib tomorrow at 15:00.\n\n```json\n" +
			`{ "intent": "book", "name": "Mohib", "service": "haircut", "date": "YYYY-MM-DD", "time": "15:00", "phone": "" }` + "\n```"},
		{Role: RoleUser, Content: "Can I get a haircut on Friday?"},
		{Role: RoleAssistant, Content: "Sure, what time would you like on Friday?\n\n```json\n" +
			`{ "intent": "clarify", "name": "", "service": "haircut", "date": "YYYY-MM-DD", "time": "", "phone": "" }` + "\n```"},
		{Role: RoleUser, Content: "Here's my phone number: +1 825 888 5611"},
		{Role: RoleAssistant, Content: "Thanks, I've noted your phone number.\n\n```json\n" +
			`{ "intent": "clarify", "name": "", "service": "", "date": "", "time": "", "phone": "+1 825 888 5611" }` + "\n```"},
	}
}

// NoopExtractor is used when no model provider is configured. It accepts
// messages that already carry a fenced JSON payload, which lets structured
// clients book without a model.
type NoopExtractor struct{}

func (NoopExtractor) Extract(_ context.Context, message string) (*models.Extraction, error) {
	_, payload := ParseReply(message)
	if payload == nil {
		return &models.Extraction{Reply: "Sorry, I can only read structured booking requests right now."}, nil
	}
	return &models.Extraction{Reply: "Got it.", Payload: payload}, nil
}
