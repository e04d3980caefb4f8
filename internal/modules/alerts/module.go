package alerts

import (
	"alert_bot/internal/modules/alerts/service"

	"go.uber.org/fx"
)

// Module реестр алертов живёт только в памяти процесса.
func Module() fx.Option {
	return fx.Module("alerts",
		fx.Provide(
			service.NewRegistry,
		),
	)
}
