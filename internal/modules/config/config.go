package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"alert_bot/internal/models"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs"
	defaultConfigFile = "values_local.yaml"
	envPrefix         = "ALERTBOT"
)

// явные имена переменных окружения, как в старом деплое
var envBindings = map[string]string{
	"telegram.token":            "TELEGRAM_TOKEN",
	"telegram.webhook_base_url": "WEBHOOK_BASE_URL",
	"service.public_port":       "PORT",
	"alerts.tick_interval":      "TICK_INTERVAL",
	"alerts.max_choices":        "MAX_CHOICES",
	"log.level":                 "LOG_LEVEL",
}

// Config ...
type Config struct {
	Telegram struct {
		Token          string  `mapstructure:"token"`
		WebhookBaseURL string  `mapstructure:"webhook_base_url"`
		WebhookPath    string  `mapstructure:"webhook_path"`
		NotifyStdout   bool    `mapstructure:"notify_stdout"` // уведомления в лог вместо чата
		SendRate       float64 `mapstructure:"send_rate"`     // сообщений в секунду
	} `mapstructure:"telegram"`

	Service struct {
		Host       string `mapstructure:"host"`
		PublicPort int    `mapstructure:"public_port"`
	} `mapstructure:"service"`

	Alerts struct {
		TickInterval      time.Duration `mapstructure:"tick_interval"`
		MaxChoices        int           `mapstructure:"max_choices"`
		FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
		NotifyTimeout     time.Duration `mapstructure:"notify_timeout"`
		NotifyConcurrency int           `mapstructure:"notify_concurrency"`
		DialogTTL         time.Duration `mapstructure:"dialog_ttl"` // брошенный диалог забывается
	} `mapstructure:"alerts"`

	PriceSource struct {
		Provider     string        `mapstructure:"provider"` // okx | mexc
		Mode         string        `mapstructure:"mode"`     // rest | stream
		SettleAsset  string        `mapstructure:"settle_asset"`
		BaseURL      string        `mapstructure:"base_url"`
		WSURL        string        `mapstructure:"ws_url"`
		HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
		StreamMaxAge time.Duration `mapstructure:"stream_max_age"`
	} `mapstructure:"price_source"`

	Catalog struct {
		StaticFile      string        `mapstructure:"static_file"`
		LoadTimeout     time.Duration `mapstructure:"load_timeout"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 = без обновления
		RetryInterval   time.Duration `mapstructure:"retry_interval"`   // повтор, если старт прошёл с пустым каталогом
	} `mapstructure:"catalog"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"tracing"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	// ключи без дефолта viper не видит в окружении при Unmarshal
	v.SetDefault("telegram.webhook_base_url", "")
	v.SetDefault("telegram.webhook_path", "/webhook")
	v.SetDefault("telegram.notify_stdout", false)
	v.SetDefault("telegram.send_rate", 25.0)

	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.public_port", 8080)

	v.SetDefault("alerts.tick_interval", "30s")
	v.SetDefault("alerts.max_choices", 10)
	v.SetDefault("alerts.fetch_timeout", "10s")
	v.SetDefault("alerts.notify_timeout", "10s")
	v.SetDefault("alerts.notify_concurrency", 4)
	v.SetDefault("alerts.dialog_ttl", "30m")

	v.SetDefault("price_source.provider", "okx")
	v.SetDefault("price_source.mode", "rest")
	v.SetDefault("price_source.settle_asset", "USDT")
	v.SetDefault("price_source.base_url", "")
	v.SetDefault("price_source.ws_url", "")
	v.SetDefault("price_source.http_timeout", "10s")
	v.SetDefault("price_source.stream_max_age", "2m")

	v.SetDefault("catalog.static_file", filepath.Join(configDir, "symbols.yaml"))
	v.SetDefault("catalog.load_timeout", "15s")
	v.SetDefault("catalog.refresh_interval", "0s")
	v.SetDefault("catalog.retry_interval", "30s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("log.level", "info")
}

// NewConfig читает configs/$CONFIG_FILE (если есть), .env и переменные окружения.
func NewConfig() (*Config, error) {
	return Load(resolvePath())
}

// NewOfflineConfig для CLI-утилит, которым не нужен Telegram: токен не обязателен.
func NewOfflineConfig() (*Config, error) {
	cfg, err := read(resolvePath())
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath() string {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = defaultConfigFile
	}
	path := configFileName
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(configDir, configFileName)
	}
	return path
}

// Load собирает конфиг из файла (может отсутствовать) и окружения.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, errors.Wrapf(models.ErrConfiguration, "bind env %s: %v", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(models.ErrConfiguration, "read config %s: %v", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(models.ErrConfiguration, "stat config %s: %v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(models.ErrConfiguration, "decode config: %v", err)
	}

	cfg.PriceSource.Provider = strings.ToLower(strings.TrimSpace(cfg.PriceSource.Provider))
	cfg.PriceSource.Mode = strings.ToLower(strings.TrimSpace(cfg.PriceSource.Mode))
	cfg.PriceSource.SettleAsset = strings.ToUpper(strings.TrimSpace(cfg.PriceSource.SettleAsset))
	cfg.Telegram.WebhookBaseURL = strings.TrimRight(strings.TrimSpace(cfg.Telegram.WebhookBaseURL), "/")
	return &cfg, nil
}

// Validate ошибки здесь фатальны: без токена и с кривым интервалом бот не стартует.
func (c *Config) Validate() error { return c.validate(true) }

func (c *Config) validate(requireToken bool) error {
	if requireToken && strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.Wrap(models.ErrConfiguration, "telegram token is required (TELEGRAM_TOKEN)")
	}
	if c.Alerts.TickInterval < time.Second || c.Alerts.TickInterval > 10*time.Minute {
		return errors.Wrapf(models.ErrConfiguration, "tick interval %s out of range 1s..10m", c.Alerts.TickInterval)
	}
	if c.Alerts.MaxChoices < 1 {
		return errors.Wrapf(models.ErrConfiguration, "max choices must be >= 1, got %d", c.Alerts.MaxChoices)
	}
	if c.Alerts.FetchTimeout <= 0 || c.Alerts.NotifyTimeout <= 0 {
		return errors.Wrap(models.ErrConfiguration, "fetch and notify timeouts must be positive")
	}
	if c.Alerts.DialogTTL <= 0 {
		return errors.Wrap(models.ErrConfiguration, "dialog ttl must be positive")
	}
	if c.Catalog.RetryInterval <= 0 || c.Catalog.LoadTimeout <= 0 {
		return errors.Wrap(models.ErrConfiguration, "catalog retry interval and load timeout must be positive")
	}
	if c.Alerts.NotifyConcurrency < 1 {
		c.Alerts.NotifyConcurrency = 1
	}
	if c.Service.PublicPort <= 0 || c.Service.PublicPort > 65535 {
		return errors.Wrapf(models.ErrConfiguration, "invalid port %d", c.Service.PublicPort)
	}
	switch c.PriceSource.Provider {
	case "okx", "mexc":
	default:
		return errors.Wrapf(models.ErrConfiguration, "unknown price provider %q", c.PriceSource.Provider)
	}
	switch c.PriceSource.Mode {
	case "rest":
	case "stream":
		if c.PriceSource.Provider != "okx" {
			return errors.Wrap(models.ErrConfiguration, "stream mode is only supported for okx")
		}
	default:
		return errors.Wrapf(models.ErrConfiguration, "unknown price source mode %q", c.PriceSource.Mode)
	}
	if c.Telegram.WebhookBaseURL != "" && !strings.HasPrefix(c.Telegram.WebhookBaseURL, "https://") {
		return errors.Wrapf(models.ErrConfiguration, "webhook base url must be https: %q", c.Telegram.WebhookBaseURL)
	}
	return nil
}

// WebhookMode: есть публичный адрес -> принимаем апдейты вебхуком, иначе long polling.
func (c *Config) WebhookMode() bool { return c.Telegram.WebhookBaseURL != "" }

func (c *Config) WebhookURL() string {
	return c.Telegram.WebhookBaseURL + c.Telegram.WebhookPath
}
