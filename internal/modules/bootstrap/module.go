package bootstrap

import (
	"context"

	"alert_bot/internal/modules/bootstrap/service"
	catalog "alert_bot/internal/modules/catalog/service"
	"alert_bot/internal/modules/config"
	exchange "alert_bot/internal/modules/exchange/service"
	"alert_bot/pkg/logger"

	"go.uber.org/fx"
)

const missingSample = 10

func NewProber(src exchange.PriceSource, c *catalog.Catalog) *service.Prober {
	return service.NewProber(src, c)
}

// Module после загрузки каталога один раз сверяет его с таблицей цен. Старт не блокирует.
func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			NewProber,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, p *service.Prober) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						probeCtx, probeCancel := context.WithTimeout(ctx, cfg.Alerts.FetchTimeout)
						defer probeCancel()
						cov, err := p.Probe(probeCtx)
						if err != nil {
							logger.Warn("[BOOT] price probe failed: %v", err)
							return
						}
						cov.Log(missingSample)
					}()
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
