package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alert_bot/internal/models"
	alerts "alert_bot/internal/modules/alerts/service"
	catalog "alert_bot/internal/modules/catalog/service"
	conversation "alert_bot/internal/modules/conversation/service"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbot.Chattable
	requests []tgbot.Chattable
}

func (f *fakeAPI) Send(c tgbot.Chattable) (tgbot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbot.Message{}, nil
}

func (f *fakeAPI) Request(c tgbot.Chattable) (*tgbot.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbot.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) messages() []tgbot.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tgbot.MessageConfig, 0, len(f.sent))
	for _, c := range f.sent {
		if m, ok := c.(tgbot.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) last(t *testing.T) tgbot.MessageConfig {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeUpdates struct {
	ch      chan tgbot.Update
	stopped atomic.Bool
}

func (f *fakeUpdates) GetUpdatesChan(tgbot.UpdateConfig) tgbot.UpdatesChannel { return f.ch }
func (f *fakeUpdates) StopReceivingUpdates()                                   { f.stopped.Store(true) }

type fixture struct {
	api      *fakeAPI
	registry *alerts.Registry
	tg       *Telegram
}

func newFixture(opts Options, updates updateSource) fixture {
	api := &fakeAPI{}
	reg := alerts.NewRegistry()
	m := conversation.NewMachine(catalog.NewCatalog("BTCUSDT", "BTCDOMUSDT", "ETHUSDT"), reg, 10)
	return fixture{api: api, registry: reg, tg: newTelegram(api, updates, m, reg, opts)}
}

const chat int64 = 555

func textUpdate(chatID int64, text string) tgbot.Update {
	msg := &tgbot.Message{Chat: &tgbot.Chat{ID: chatID}, Text: text}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbot.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbot.Update{Message: msg}
}

func callbackUpdate(chatID int64, data string) tgbot.Update {
	return tgbot.Update{CallbackQuery: &tgbot.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		Message: &tgbot.Message{Chat: &tgbot.Chat{ID: chatID}},
	}}
}

func buttons(t *testing.T, msg tgbot.MessageConfig) [][]tgbot.InlineKeyboardButton {
	t.Helper()
	kb, ok := msg.ReplyMarkup.(tgbot.InlineKeyboardMarkup)
	require.True(t, ok, "expected inline keyboard, got %T", msg.ReplyMarkup)
	return kb.InlineKeyboard
}

func TestHandleUpdate_FullFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{}, nil)

	f.tg.HandleUpdate(ctx, textUpdate(chat, "btc"))
	msg := f.api.last(t)
	assert.Equal(t, chat, msg.ChatID)
	rows := buttons(t, msg)
	require.Len(t, rows, 1, "two candidates fit in one row")
	require.Len(t, rows[0], 2)
	assert.Equal(t, "BTCUSDT", rows[0][0].Text)

	f.tg.HandleUpdate(ctx, callbackUpdate(chat, *rows[0][0].CallbackData))
	assert.Equal(t, 1, f.api.requestCount(), "callback answered")
	dirRows := buttons(t, f.api.last(t))
	require.Len(t, dirRows, 1)

	f.tg.HandleUpdate(ctx, callbackUpdate(chat, *dirRows[0][1].CallbackData))
	assert.Contains(t, f.api.last(t).Text, "send the target price")

	f.tg.HandleUpdate(ctx, textUpdate(chat, "abc"))
	assert.Contains(t, f.api.last(t).Text, "Invalid number")

	f.tg.HandleUpdate(ctx, textUpdate(chat, "45000"))
	assert.Contains(t, f.api.last(t).Text, "Alert set: BTCUSDT below 45000")

	list := f.registry.ListActive(chat)
	require.Len(t, list, 1)
	assert.Equal(t, models.DirectionAtOrBelow, list[0].Direction)
}

func TestHandleUpdate_Commands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{}, nil)

	f.tg.HandleUpdate(ctx, textUpdate(chat, "/start"))
	assert.Contains(t, f.api.last(t).Text, "Send a ticker")

	f.tg.HandleUpdate(ctx, textUpdate(chat, "/alerts"))
	assert.Contains(t, f.api.last(t).Text, "no active alerts")

	f.tg.HandleUpdate(ctx, textUpdate(chat, "eth"))
	f.tg.HandleUpdate(ctx, textUpdate(chat, "/cancel"))
	assert.Contains(t, f.api.last(t).Text, "Cancelled")

	f.tg.HandleUpdate(ctx, textUpdate(chat, "/wat"))
	assert.Contains(t, f.api.last(t).Text, "Unknown command")
}

func TestHandleUpdate_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{}, nil)

	f.registry.Add(models.NewAlert(chat, "BTCUSDT", models.DirectionAtOrAbove, decimal.NewFromInt(50000), time.Now()))
	f.registry.Add(models.NewAlert(chat, "ETHUSDT", models.DirectionAtOrBelow, decimal.NewFromInt(2000), time.Now()))
	foreign := f.registry.Add(models.NewAlert(chat+1, "ETHUSDT", models.DirectionAtOrBelow, decimal.NewFromInt(1), time.Now()))
	f.registry.ObservePrices(map[models.Symbol]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(48000)})

	f.tg.HandleUpdate(ctx, textUpdate(chat, "/alerts"))
	msg := f.api.last(t)
	assert.Contains(t, msg.Text, "1. BTCUSDT above 50000 (last 48000)")
	assert.Contains(t, msg.Text, "2. ETHUSDT below 2000")
	rows := buttons(t, msg)
	require.Len(t, rows, 2)

	f.tg.HandleUpdate(ctx, callbackUpdate(chat, *rows[0][0].CallbackData))
	assert.Contains(t, f.api.last(t).Text, "Removed: BTCUSDT above 50000")
	assert.Len(t, f.registry.ListActive(chat), 1)

	// повторное нажатие той же кнопки
	f.tg.HandleUpdate(ctx, callbackUpdate(chat, *rows[0][0].CallbackData))
	assert.Contains(t, f.api.last(t).Text, "no longer active")

	// чужой алерт не удаляется
	f.tg.HandleUpdate(ctx, callbackUpdate(chat, deletePrefix+string(foreign)))
	assert.Contains(t, f.api.last(t).Text, "no longer active")
	assert.Len(t, f.registry.ListActive(chat+1), 1)
}

func TestHandleUpdate_StaleButton(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{}, nil)

	f.tg.HandleUpdate(ctx, textUpdate(chat, "btc"))
	old := buttons(t, f.api.last(t))
	f.tg.HandleUpdate(ctx, textUpdate(chat, "eth"))

	f.tg.HandleUpdate(ctx, callbackUpdate(chat, *old[0][0].CallbackData))
	assert.Contains(t, f.api.last(t).Text, "outdated")
}

func TestHandleUpdate_IgnoresEmpty(t *testing.T) {
	f := newFixture(Options{}, nil)
	f.tg.HandleUpdate(context.Background(), tgbot.Update{})
	f.tg.HandleUpdate(context.Background(), tgbot.Update{Message: &tgbot.Message{}})
	assert.Empty(t, f.api.messages())
}

func TestWebhookHandler(t *testing.T) {
	f := newFixture(Options{WebhookURL: "https://example.com/webhook"}, nil)
	h := f.tg.WebhookHandler()

	body := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":555,"type":"private"},"text":"eth"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.api.last(t).Text, "ETHUSDT")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{broken")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.api.messages(), 1)
}

func TestStart_Webhook(t *testing.T) {
	f := newFixture(Options{WebhookURL: "https://example.com/webhook"}, nil)
	require.NoError(t, f.tg.Start(context.Background()))

	var found bool
	for _, c := range f.api.requests {
		if wh, ok := c.(tgbot.WebhookConfig); ok {
			found = true
			assert.Equal(t, "https://example.com/webhook", wh.URL.String())
		}
	}
	assert.True(t, found)
	f.tg.Stop()
}

func TestStart_Polling(t *testing.T) {
	updates := &fakeUpdates{ch: make(chan tgbot.Update, 1)}
	f := newFixture(Options{}, updates)
	require.NoError(t, f.tg.Start(context.Background()))

	var deleted bool
	for _, c := range f.api.requests {
		if _, ok := c.(tgbot.DeleteWebhookConfig); ok {
			deleted = true
		}
	}
	assert.True(t, deleted)

	updates.ch <- textUpdate(chat, "/help")
	assert.Eventually(t, func() bool { return len(f.api.messages()) == 1 }, time.Second, 5*time.Millisecond)

	f.tg.Stop()
	assert.True(t, updates.stopped.Load())
}
