package notify

import (
	"context"

	"alert_bot/internal/models"
	"alert_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Notifier best-effort доставка одного сообщения владельцу алерта. Повторов нет.
type Notifier interface {
	Send(ctx context.Context, owner int64, text string) error
}

// Sender часть *tgbot.BotAPI, нужная для отправки.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// Telegram шлёт уведомления в чат владельца с общим лимитом на бота.
type Telegram struct {
	bot     Sender
	limiter *rate.Limiter
}

// NewTelegram perSecond<=0 выключает лимит.
func NewTelegram(bot Sender, perSecond float64) *Telegram {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return &Telegram{bot: bot, limiter: lim}
}

func (t *Telegram) Send(ctx context.Context, owner int64, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(models.ErrUpstreamFetch, "telegram rate wait: %v", err)
	}

	// Send библиотеки без ctx: по истечении ctx ответ не ждём, саму горутину
	// ограничивает таймаут HTTP-клиента (см. NewSendBot)
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, err := t.bot.Send(tgbot.NewMessage(owner, text))
		done <- result{err: err}
	}()

	select {
	case <-ctx.Done():
		return errors.Wrapf(models.ErrUpstreamFetch, "telegram send to %d: %v", owner, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return errors.Wrapf(models.ErrUpstreamFetch, "telegram send to %d: %v", owner, r.err)
		}
		return nil
	}
}

// Stdout пишет уведомления в лог; для запусков без чата.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Send(_ context.Context, owner int64, text string) error {
	logger.L().Info("[NOTIFY] stdout", zap.Int64("owner", owner), zap.String("text", text))
	return nil
}
