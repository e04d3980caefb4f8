package notify

import (
	"net/http"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewSendBot отдельный клиент бота только для уведомлений.
// Send библиотеки не принимает ctx, поэтому запрос ограничен таймаутом HTTP-клиента:
// горутина, брошенная Telegram.Send по ctx, живёт не дольше timeout.
// У основного бота таймаут длиннее из-за long polling.
func NewSendBot(src *tgbot.BotAPI, endpoint string, timeout time.Duration) *tgbot.BotAPI {
	b := &tgbot.BotAPI{
		Token:  src.Token,
		Buffer: src.Buffer,
		Self:   src.Self,
		Client: &http.Client{Timeout: timeout},
	}
	b.SetAPIEndpoint(endpoint)
	return b
}
