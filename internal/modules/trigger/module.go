package trigger

import (
	"context"

	alerts "alert_bot/internal/modules/alerts/service"
	"alert_bot/internal/modules/config"
	exchange "alert_bot/internal/modules/exchange/service"
	health "alert_bot/internal/modules/health/service"
	"alert_bot/internal/modules/trigger/service"
	"alert_bot/internal/notify"

	"go.uber.org/fx"
)

func NewLoop(cfg *config.Config, src exchange.PriceSource, reg *alerts.Registry, n notify.Notifier, state *health.State) *service.Loop {
	return service.NewLoop(service.Config{
		Interval:          cfg.Alerts.TickInterval,
		FetchTimeout:      cfg.Alerts.FetchTimeout,
		NotifyTimeout:     cfg.Alerts.NotifyTimeout,
		NotifyConcurrency: cfg.Alerts.NotifyConcurrency,
	}, src, reg, n, state)
}

// Module цикл проверки цен; останавливается на границе тика.
func Module() fx.Option {
	return fx.Module("trigger",
		fx.Provide(
			NewLoop,
		),
		fx.Invoke(func(lc fx.Lifecycle, l *service.Loop) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						l.Run(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
