package intent

import (
	"encoding/json"
	"regexp"
	"strings"

	"salonbook/internal/models"
)

var jsonBlock = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// ParseReply splits a model answer into the visible text and the fenced
// JSON payload. The payload is nil when the block is missing, is not valid
// JSON, or names an intent we do not handle.
func ParseReply(reply string) (string, *models.IntentPayload) {
	loc := jsonBlock.FindStringSubmatchIndex(reply)
	if loc == nil {
		return strings.TrimSpace(reply), nil
	}

	text := strings.TrimSpace(reply[:loc[0]] + reply[loc[1]:])
	raw := reply[loc[2]:loc[3]]

	var payload models.IntentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return text, nil
	}

	payload.Intent = strings.ToLower(strings.TrimSpace(payload.Intent))
	if !models.IsKnownIntent(payload.Intent) {
		return text, nil
	}
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Service = strings.TrimSpace(payload.Service)
	payload.Date = strings.TrimSpace(payload.Date)
	payload.Time = strings.TrimSpace(payload.Time)
	payload.Phone = strings.TrimSpace(payload.Phone)

	return text, &payload
}
