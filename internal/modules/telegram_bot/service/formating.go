package service

import (
	"fmt"
	"strings"

	"alert_bot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func describeAlert(a models.Alert) string {
	return fmt.Sprintf("%s %s %s", a.Symbol, a.Direction.Label(), a.Threshold.String())
}

func formatAlerts(list []models.Alert) string {
	var b strings.Builder
	b.WriteString("🔔 Active alerts:\n")
	for i, a := range list {
		fmt.Fprintf(&b, "%d. %s", i+1, describeAlert(a))
		if a.LastObservedPrice != nil {
			fmt.Fprintf(&b, " (last %s)", a.LastObservedPrice.String())
		}
		b.WriteString("\n")
	}
	b.WriteString("\nTap a button to remove an alert.")
	return b.String()
}

// deleteKeyboard по кнопке на алерт; номер совпадает со списком.
func deleteKeyboard(list []models.Alert) tgbot.InlineKeyboardMarkup {
	rows := make([][]tgbot.InlineKeyboardButton, 0, len(list))
	for i, a := range list {
		label := fmt.Sprintf("❌ %d. %s", i+1, a.Symbol)
		rows = append(rows, tgbot.NewInlineKeyboardRow(
			tgbot.NewInlineKeyboardButtonData(label, deletePrefix+string(a.ID)),
		))
	}
	return tgbot.NewInlineKeyboardMarkup(rows...)
}
