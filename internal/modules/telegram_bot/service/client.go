package service

import (
	"context"
	"net/http"
	"sync"

	"alert_bot/internal/models"
	conversation "alert_bot/internal/modules/conversation/service"
	"alert_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// botAPI то, что нужно от *tgbot.BotAPI для ответов.
type botAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
}

// updateSource long polling; реализуется *tgbot.BotAPI.
type updateSource interface {
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

type Machine interface {
	OnText(ctx context.Context, owner int64, raw string) conversation.Action
	OnSelect(ctx context.Context, owner int64, data string) conversation.Action
	Cancel(owner int64) conversation.Action
}

type Registry interface {
	ListActive(owner int64) []models.Alert
	RemoveOwned(owner int64, id models.AlertID) bool
}

type Options struct {
	// WebhookURL пусто -> long polling.
	WebhookURL string
}

// Telegram транспорт: апдейты в машину диалога, действия обратно в чат.
type Telegram struct {
	api      botAPI
	updates  updateSource
	machine  Machine
	registry Registry
	opts     Options
	parse    func(r *http.Request) (*tgbot.Update, error)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegram(bot *tgbot.BotAPI, machine Machine, registry Registry, opts Options) *Telegram {
	return newTelegram(bot, bot, machine, registry, opts)
}

func newTelegram(api botAPI, updates updateSource, machine Machine, registry Registry, opts Options) *Telegram {
	return &Telegram{
		api:      api,
		updates:  updates,
		machine:  machine,
		registry: registry,
		opts:     opts,
		// HandleUpdate не трогает состояние бота, только декодирует тело
		parse: (&tgbot.BotAPI{}).HandleUpdate,
	}
}

func (t *Telegram) WebhookMode() bool { return t.opts.WebhookURL != "" }

// Start регистрирует вебхук или запускает long polling в отдельной горутине.
func (t *Telegram) Start(ctx context.Context) error {
	if _, err := t.api.Request(tgbot.NewSetMyCommands(commands...)); err != nil {
		logger.L().Warn("[TG] set commands failed", zap.Error(err))
	}

	if t.WebhookMode() {
		wh, err := tgbot.NewWebhook(t.opts.WebhookURL)
		if err != nil {
			return errors.Wrapf(models.ErrConfiguration, "webhook url %q: %v", t.opts.WebhookURL, err)
		}
		if _, err := t.api.Request(wh); err != nil {
			return errors.Wrapf(models.ErrUpstreamFetch, "set webhook: %v", err)
		}
		logger.Info("[TG] webhook registered: %s", t.opts.WebhookURL)
		return nil
	}

	// старый вебхук не даст getUpdates работать
	if _, err := t.api.Request(tgbot.DeleteWebhookConfig{}); err != nil {
		return errors.Wrapf(models.ErrUpstreamFetch, "delete webhook: %v", err)
	}
	if t.updates == nil {
		return errors.Wrap(models.ErrConfiguration, "long polling needs an update source")
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := t.updates.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.HandleUpdate(runCtx, upd)
			}
		}
	}()
	logger.Info("[TG] long polling started")
	return nil
}

func (t *Telegram) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	if t.updates != nil && !t.WebhookMode() {
		t.updates.StopReceivingUpdates()
	}
	t.wg.Wait()
}

func (t *Telegram) send(chatID int64, msg tgbot.MessageConfig) {
	if _, err := t.api.Send(msg); err != nil {
		logger.L().Warn("[TG] send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (t *Telegram) sendText(chatID int64, text string) {
	t.send(chatID, tgbot.NewMessage(chatID, text))
}

// render Reply -> текст, ReplyWithChoices -> текст с inline-кнопками по две в ряд.
func (t *Telegram) render(chatID int64, a conversation.Action) {
	msg := tgbot.NewMessage(chatID, a.Text)
	if a.Kind == conversation.ActionReplyWithChoices && len(a.Choices) > 0 {
		msg.ReplyMarkup = keyboard(a.Choices)
	}
	t.send(chatID, msg)
}

func keyboard(choices []conversation.Choice) tgbot.InlineKeyboardMarkup {
	rows := make([][]tgbot.InlineKeyboardButton, 0, (len(choices)+1)/2)
	for i := 0; i < len(choices); i += 2 {
		row := []tgbot.InlineKeyboardButton{tgbot.NewInlineKeyboardButtonData(choices[i].Label, choices[i].Data)}
		if i+1 < len(choices) {
			row = append(row, tgbot.NewInlineKeyboardButtonData(choices[i+1].Label, choices[i+1].Data))
		}
		rows = append(rows, row)
	}
	return tgbot.NewInlineKeyboardMarkup(rows...)
}
