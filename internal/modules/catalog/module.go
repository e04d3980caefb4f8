package catalog

import (
	"context"

	"alert_bot/internal/models"
	"alert_bot/internal/modules/catalog/service"
	"alert_bot/internal/modules/config"
	exchange "alert_bot/internal/modules/exchange/service"
	"alert_bot/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewLoader(cfg *config.Config, c *service.Catalog, src exchange.PriceSource) *service.Loader {
	return service.NewLoader(c, src, cfg.Catalog.StaticFile, models.SymbolFilter{
		SettleAsset: cfg.PriceSource.SettleAsset,
		Perpetual:   true,
	})
}

// Module каталог грузится на старте. Если ни биржа, ни статический список не ответили,
// бот поднимается с пустым каталогом и повторяет загрузку в фоне.
func Module() fx.Option {
	return fx.Module("catalog",
		fx.Provide(
			func() *service.Catalog { return service.NewCatalog() },
			NewLoader,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, l *service.Loader) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Catalog.LoadTimeout)
					_, err := l.Load(loadCtx)
					loadCancel()
					if err != nil {
						logger.L().Error("[CATALOG] starting with empty catalog, will retry",
							zap.Error(err), zap.Duration("retry_every", cfg.Catalog.RetryInterval))
					}

					go func() {
						defer close(done)
						if err != nil && !l.RetryUntilLoaded(ctx, cfg.Catalog.RetryInterval, cfg.Catalog.LoadTimeout) {
							return
						}
						if every := cfg.Catalog.RefreshInterval; every > 0 {
							l.Run(ctx, every, cfg.Catalog.LoadTimeout)
						}
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
