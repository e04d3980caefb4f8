package exchange

import (
	"context"

	"alert_bot/internal/models"
	"alert_bot/internal/modules/config"
	"alert_bot/internal/modules/exchange/service"
	health "alert_bot/internal/modules/health/service"
	"alert_bot/pkg/logger"

	"go.uber.org/fx"
)

// NewPriceSource выбирает биржу и режим по конфигу.
func NewPriceSource(cfg *config.Config) service.PriceSource {
	ps := cfg.PriceSource
	switch ps.Provider {
	case "mexc":
		return service.NewMEXC(ps.HTTPTimeout, ps.BaseURL)
	default:
		rest := service.NewOKX(ps.HTTPTimeout, service.WithOKXBaseURL(ps.BaseURL))
		if ps.Mode == "stream" {
			return service.NewStream(rest, ps.WSURL, ps.StreamMaxAge, models.SymbolFilter{
				SettleAsset: ps.SettleAsset,
				Perpetual:   true,
			})
		}
		return rest
	}
}

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			NewPriceSource,
		),
		fx.Invoke(func(lc fx.Lifecycle, src service.PriceSource, state *health.State) {
			stream, ok := src.(*service.Stream)
			if !ok {
				return
			}
			stream.OnConnect = state.SetWSConnected

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					logger.Info("[EXCHANGE] starting OKX tickers stream")
					go func() {
						defer close(done)
						stream.Run(ctx)
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
