package service

import (
	"context"
	"strings"

	"alert_bot/internal/models"
	conversation "alert_bot/internal/modules/conversation/service"
	"alert_bot/pkg/logger"
	"alert_bot/pkg/tracing"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const deletePrefix = "DEL:"

var commands = []tgbot.BotCommand{
	{Command: "start", Description: "How to create a price alert"},
	{Command: "alerts", Description: "List and remove your active alerts"},
	{Command: "cancel", Description: "Abort the current alert setup"},
	{Command: "help", Description: "Usage"},
}

const usageText = "I watch prices and ping you once when a target is reached.\n\n" +
	"1. Send a ticker, e.g. BTC or BTCUSDT.\n" +
	"2. Choose whether the price should go above or below the target.\n" +
	"3. Send the target price.\n\n" +
	"/alerts lists your active alerts, /cancel aborts the current setup."

// HandleUpdate одна точка входа для вебхука и long polling.
func (t *Telegram) HandleUpdate(ctx context.Context, upd tgbot.Update) {
	span, ctx := tracing.StartSpan(ctx, "telegram.update")
	defer span.Finish()
	span.SetTag("update.id", upd.UpdateID)

	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("[TG] update panic", zap.Any("panic", r), zap.Int("update", upd.UpdateID))
		}
	}()

	// 1) Обычные сообщения
	if msg := upd.Message; msg != nil {
		if msg.Chat == nil {
			return
		}
		chatID := msg.Chat.ID

		if msg.IsCommand() {
			t.handleCommand(chatID, msg.Command())
			return
		}
		if strings.TrimSpace(msg.Text) == "" {
			// стикеры, фото и прочее
			t.sendText(chatID, "Send a ticker as text, e.g. BTC.")
			return
		}
		a := t.machine.OnText(ctx, chatID, msg.Text)
		t.render(chatID, a)
		t.logAction(chatID, "text", a)
		return
	}

	// 2) Inline-кнопки
	if cb := upd.CallbackQuery; cb != nil {
		// ответ Telegram для остановки спиннера
		if _, err := t.api.Request(tgbot.NewCallback(cb.ID, "")); err != nil {
			logger.L().Debug("[TG] answer callback failed", zap.Error(err))
		}
		if cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		t.handleCallback(ctx, cb.Message.Chat.ID, cb.Data)
	}
}

func (t *Telegram) handleCommand(chatID int64, cmd string) {
	switch cmd {
	case "start", "help":
		t.sendText(chatID, usageText)
	case "cancel":
		t.render(chatID, t.machine.Cancel(chatID))
	case "alerts":
		t.handleList(chatID)
	default:
		t.sendText(chatID, "Unknown command.\n\n"+usageText)
	}
}

func (t *Telegram) handleCallback(ctx context.Context, chatID int64, data string) {
	switch {
	case conversation.IsSelection(data):
		a := t.machine.OnSelect(ctx, chatID, data)
		t.render(chatID, a)
		t.logAction(chatID, "select", a)
	case strings.HasPrefix(data, deletePrefix):
		t.handleDelete(chatID, models.AlertID(strings.TrimPrefix(data, deletePrefix)))
	default:
		logger.L().Debug("[TG] unknown callback", zap.Int64("chat", chatID), zap.String("data", data))
	}
}

func (t *Telegram) handleList(chatID int64) {
	list := t.registry.ListActive(chatID)
	if len(list) == 0 {
		t.sendText(chatID, "You have no active alerts. Send a ticker, e.g. BTC, to create one.")
		return
	}
	msg := tgbot.NewMessage(chatID, formatAlerts(list))
	msg.ReplyMarkup = deleteKeyboard(list)
	t.send(chatID, msg)
}

// handleDelete чужой или уже сработавший алерт просто "не найден".
func (t *Telegram) handleDelete(chatID int64, id models.AlertID) {
	var target *models.Alert
	for _, a := range t.registry.ListActive(chatID) {
		if a.ID == id {
			target = &a
			break
		}
	}
	if target == nil || !t.registry.RemoveOwned(chatID, id) {
		t.sendText(chatID, "That alert is no longer active.")
		return
	}
	t.sendText(chatID, "🗑 Removed: "+describeAlert(*target))
}

func (t *Telegram) logAction(chatID int64, kind string, a conversation.Action) {
	if a.Err == nil {
		if a.Kind == conversation.ActionAlertCreated && a.Alert != nil {
			logger.L().Info("[TG] alert created",
				zap.Int64("chat", chatID),
				zap.String("alert", string(a.Alert.ID)),
				zap.String("symbol", string(a.Alert.Symbol)),
			)
		}
		return
	}
	level := "validation"
	if errors.Is(a.Err, models.ErrStaleSelection) {
		level = "stale"
	}
	logger.L().Debug("[TG] input rejected",
		zap.Int64("chat", chatID),
		zap.String("kind", kind),
		zap.String("reason", level),
		zap.Error(a.Err),
	)
}
