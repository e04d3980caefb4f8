package config

import "go.uber.org/fx"

// Module отдаёт уже прочитанный конфиг: main грузит его раньше, чтобы поднять логгер.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
