package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	slotCallbackPrefix = "slot:"
	buttonsPerRow      = 3
)

func suggestionKeyboard(suggestions []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, at := range suggestions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Book at "+at, slotCallbackPrefix+at))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseSlotCallback(data string) (string, bool) {
	at, ok := strings.CutPrefix(data, slotCallbackPrefix)
	if !ok || len(at) != len("15:04") {
		return "", false
	}
	return at, true
}
