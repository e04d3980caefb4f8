package telegram

import (
	"context"
	"net/http"
	"time"

	"alert_bot/internal/models"
	alerts "alert_bot/internal/modules/alerts/service"
	"alert_bot/internal/modules/config"
	conversation "alert_bot/internal/modules/conversation/service"
	health "alert_bot/internal/modules/health/service"
	"alert_bot/internal/modules/telegram_bot/service"
	"alert_bot/internal/notify"
	"alert_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

func NewBotAPI(cfg *config.Config) (*tgbot.BotAPI, error) {
	// long polling держит запрос до 30с
	client := &http.Client{Timeout: 45 * time.Second}
	b, err := tgbot.NewBotAPIWithClient(cfg.Telegram.Token, tgbot.APIEndpoint, client)
	if err != nil {
		return nil, errors.Wrapf(models.ErrConfiguration, "telegram auth: %v", err)
	}
	logger.Info("[TG] authorized as @%s", b.Self.UserName)
	return b, nil
}

func NewNotifier(cfg *config.Config, bot *tgbot.BotAPI) notify.Notifier {
	if cfg.Telegram.NotifyStdout {
		return notify.NewStdout()
	}
	sendBot := notify.NewSendBot(bot, tgbot.APIEndpoint, cfg.Alerts.NotifyTimeout)
	return notify.NewTelegram(sendBot, cfg.Telegram.SendRate)
}

func NewTelegram(cfg *config.Config, bot *tgbot.BotAPI, m *conversation.Machine, r *alerts.Registry) *service.Telegram {
	opts := service.Options{}
	if cfg.WebhookMode() {
		opts.WebhookURL = cfg.WebhookURL()
	}
	return service.NewTelegram(bot, m, r, opts)
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewBotAPI,
			NewNotifier,
			NewTelegram,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, t *service.Telegram, mux *http.ServeMux, state *health.State) {
				if t.WebhookMode() {
					mux.Handle(cfg.Telegram.WebhookPath, t.WebhookHandler())
				}
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						// ctx хука живёт только на время старта; polling нужен свой
						if err := t.Start(context.Background()); err != nil {
							return err
						}
						state.SetReady(true)
						return nil
					},
					OnStop: func(ctx context.Context) error {
						state.SetReady(false)
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
