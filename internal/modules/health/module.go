package health

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	alerts "alert_bot/internal/modules/alerts/service"
	catalog "alert_bot/internal/modules/catalog/service"
	"alert_bot/internal/modules/config"
	"alert_bot/internal/modules/health/service"
	"alert_bot/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type Config struct {
	Addr string // например ":8080"
	// TickMaxAge сколько цикл может молчать, прежде чем /readyz станет 503
	TickMaxAge time.Duration
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		Addr:       net.JoinHostPort(cfg.Service.Host, strconv.Itoa(cfg.Service.PublicPort)),
		TickMaxAge: 3*cfg.Alerts.TickInterval + cfg.Alerts.FetchTimeout,
	}
}

type stats struct {
	registry *alerts.Registry
	catalog  *catalog.Catalog
}

func (s stats) ActiveAlerts() int   { return s.registry.Len() }
func (s stats) CatalogSymbols() int { return s.catalog.Len() }

func NewMux(cfg Config, state *service.State, r *alerts.Registry, c *catalog.Catalog) *http.ServeMux {
	return service.Routes(state, stats{registry: r, catalog: c}, cfg.TickMaxAge)
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return errors.Wrapf(err, "listen %s", cfg.Addr)
			}
			logger.Info("[HTTP] listening on %s", cfg.Addr)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[HTTP] serve: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
