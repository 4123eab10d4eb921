package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	reply string
	err   error
	got   Request
}

func (f *fakeLLM) Complete(_ context.Context, req Request) (Response, error) {
	f.got = req
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Text: f.reply}, nil
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantText  string
		wantNil   bool
		wantName  string
		wantPhone string
	}{
		{
			name:     "full booking",
			reply:    "Booked!\n\n```json\n{ \"intent\": \"book\", \"name\": \" Mohib \", \"service\": \"haircut\", \"date\": \"2025-11-18\", \"time\": \"10:00\" }\n```",
			wantText: "Booked!",
			wantName: "Mohib",
		},
		{
			name:      "upper case fence",
			reply:     "Thanks\n```JSON\n{\"intent\":\"clarify\",\"phone\":\"825-888-5611\"}\n```",
			wantText:  "Thanks",
			wantPhone: "825-888-5611",
		},
		{
			name:     "no block",
			reply:    "  What time works for you?  ",
			wantText: "What time works for you?",
			wantNil:  true,
		},
		{
			name:     "malformed json",
			reply:    "Hmm\n```json\n{ intent: book\n```",
			wantText: "Hmm",
			wantNil:  true,
		},
		{
			name:     "unknown intent",
			reply:    "Ok\n```json\n{\"intent\":\"reschedule\"}\n```",
			wantText: "Ok",
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, payload := ParseReply(tt.reply)
			assert.Equal(t, tt.wantText, text)
			if tt.wantNil {
				assert.Nil(t, payload)
				return
			}
			require.NotNil(t, payload)
			assert.Equal(t, tt.wantName, payload.Name)
			assert.Equal(t, tt.wantPhone, payload.Phone)
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	llm := &fakeLLM{reply: "Sure.\n```json\n{\"intent\":\"book\",\"name\":\"Ana\",\"service\":\"nails\",\"date\":\"2025-11-19\",\"time\":\"14:00\",\"phone\":\"\"}\n```"}
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	ex := NewExtractor(llm, loc, 0.2, time.Second, nil)
	ex.now = func() time.Time { return time.Date(2025, 11, 18, 23, 30, 0, 0, time.UTC) }

	got, err := ex.Extract(context.Background(), "nails for Ana tomorrow at 2pm")
	require.NoError(t, err)
	assert.Equal(t, "Sure.", got.Reply)
	require.NotNil(t, got.Payload)
	assert.Equal(t, models.IntentBook, got.Payload.Intent)
	assert.Equal(t, "14:00", got.Payload.Time)

	assert.Contains(t, llm.got.System, "Today's date is 2025-11-18")
	assert.InDelta(t, 0.2, llm.got.Temperature, 0.0001)
	last := llm.got.Messages[len(llm.got.Messages)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, "nails for Ana tomorrow at 2pm", last.Content)
}

func TestExtractor_UsesConfiguredZone(t *testing.T) {
	llm := &fakeLLM{reply: "hi"}
	loc := time.FixedZone("UTC+3", 3*60*60)
	ex := NewExtractor(llm, loc, 0, 0, nil)
	ex.now = func() time.Time { return time.Date(2025, 11, 18, 23, 30, 0, 0, time.UTC) }

	_, err := ex.Extract(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, strings.Contains(llm.got.System, "2025-11-19"), "date must be computed in the configured zone")
}

func TestExtractor_TransportError(t *testing.T) {
	ex := NewExtractor(&fakeLLM{err: errors.New("quota")}, time.UTC, 0, 0, nil)
	_, err := ex.Extract(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNoopExtractor(t *testing.T) {
	got, err := NoopExtractor{}.Extract(context.Background(), "hello")
	require.NoError(t, err)
	assert.Nil(t, got.Payload)
	assert.NotEmpty(t, got.Reply)

	got, err = NoopExtractor{}.Extract(context.Background(), "```json\n{\"intent\":\"book\",\"name\":\"Ana\"}\n```")
	require.NoError(t, err)
	require.NotNil(t, got.Payload)
	assert.Equal(t, "Ana", got.Payload.Name)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), " ", "")
	assert.Error(t, err)
}

func TestNew_Providers(t *testing.T) {
	ex, closeFn, err := New(context.Background(), config.IntentConfig{Provider: "none"}, time.UTC, nil)
	require.NoError(t, err)
	assert.IsType(t, NoopExtractor{}, ex)
	assert.NoError(t, closeFn())

	_, _, err = New(context.Background(), config.IntentConfig{Provider: "openai"}, time.UTC, nil)
	assert.Error(t, err)

	_, _, err = New(context.Background(), config.IntentConfig{Provider: "gemini"}, time.UTC, nil)
	assert.Error(t, err, "missing api key")
}
