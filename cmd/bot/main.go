package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"alert_bot/internal/models"
	alertsModule "alert_bot/internal/modules/alerts"
	"alert_bot/internal/modules/bootstrap"
	catalogModule "alert_bot/internal/modules/catalog"
	catalog "alert_bot/internal/modules/catalog/service"
	"alert_bot/internal/modules/config"
	"alert_bot/internal/modules/conversation"
	"alert_bot/internal/modules/exchange"
	"alert_bot/internal/modules/health"
	telegram "alert_bot/internal/modules/telegram_bot"
	"alert_bot/internal/modules/tracing"
	"alert_bot/internal/modules/trigger"
	"alert_bot/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "alert_bot",
	Short:        "Telegram bot that pings you once when a price target is reached",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			_ = os.Setenv("CONFIG_FILE", configFile)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the trigger loop and the health server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <query>",
	Short: "Load the symbol catalog and print the symbols matching a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := offline()
		if err != nil {
			return err
		}
		c := catalog.NewCatalog()
		if err := loadCatalog(cmd.Context(), cfg, c); err != nil {
			return err
		}
		matches := c.Find(args[0], cfg.Alerts.MaxChoices)
		if len(matches) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no symbols match %q (%d in catalog)\n", args[0], c.Len())
			return nil
		}
		for _, s := range matches {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

var priceCmd = &cobra.Command{
	Use:   "price <symbol>...",
	Short: "Fetch the current price table once and print the given symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := offline()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Alerts.FetchTimeout)
		defer cancel()
		prices, err := exchange.NewPriceSource(cfg).GetAllPrices(ctx)
		if err != nil {
			return err
		}
		for _, raw := range args {
			sym := models.NormalizeSymbol(raw)
			if p, ok := prices[sym]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sym, p.String())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tn/a\n", sym)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file name under configs/ or a path (overrides CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, symbolsCmd, priceCmd)
}

func offline() (*config.Config, error) {
	cfg, err := config.NewOfflineConfig()
	if err != nil {
		return nil, err
	}
	_ = logger.Init(cfg.Log.Level)
	return cfg, nil
}

func loadCatalog(ctx context.Context, cfg *config.Config, c *catalog.Catalog) error {
	l := catalogModule.NewLoader(cfg, c, exchange.NewPriceSource(cfg))
	ctx, cancel := context.WithTimeout(ctx, cfg.Catalog.LoadTimeout)
	defer cancel()
	_, err := l.Load(ctx)
	return err
}

func serve() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return err
	}
	logger.SetServiceName("alert_bot")
	defer logger.Sync()

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.L()}
		}),
		config.Module(cfg),
		tracing.Module(),
		health.Module(),
		exchange.Module(),
		catalogModule.Module(),
		bootstrap.Module(),
		alertsModule.Module(),
		conversation.Module(),
		telegram.Module(),
		trigger.Module(),
		fx.StopTimeout(cfg.Alerts.NotifyTimeout+5*time.Second),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Catalog.LoadTimeout+15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	logger.Info("[MAIN] started: provider=%s mode=%s tick=%s webhook=%t",
		cfg.PriceSource.Provider, cfg.PriceSource.Mode, cfg.Alerts.TickInterval, cfg.WebhookMode())

	sig := <-app.Done()
	logger.Info("[MAIN] shutting down on %s", strings.ToUpper(sig.String()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer stopCancel()
	return app.Stop(stopCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
