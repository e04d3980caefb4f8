package conversation

import (
	"context"
	"time"

	alerts "alert_bot/internal/modules/alerts/service"
	catalog "alert_bot/internal/modules/catalog/service"
	"alert_bot/internal/modules/config"
	"alert_bot/internal/modules/conversation/service"

	"go.uber.org/fx"
)

func NewMachine(cfg *config.Config, c *catalog.Catalog, r *alerts.Registry) *service.Machine {
	return service.NewMachine(c, r, cfg.Alerts.MaxChoices)
}

func Module() fx.Option {
	return fx.Module("conversation",
		fx.Provide(
			NewMachine,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, m *service.Machine) {
			ttl := cfg.Alerts.DialogTTL
			every := ttl / 4
			if every < time.Second {
				every = time.Second
			}
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go m.RunSweeper(ctx, every, ttl)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
