package service

import (
	"context"
	"os"
	"time"

	"alert_bot/internal/metrics"
	"alert_bot/internal/models"
	"alert_bot/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// SymbolSource метаданные биржи; реализуется PriceSource.
type SymbolSource interface {
	GetExchangeSymbols(ctx context.Context, filter models.SymbolFilter) ([]models.Symbol, error)
}

type staticList struct {
	Symbols []string `yaml:"symbols"`
}

// LoadStatic читает резервный список символов из YAML (ключ symbols).
func LoadStatic(path string) ([]models.Symbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(models.ErrConfiguration, "read static symbols %s: %v", path, err)
	}
	var list staticList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, errors.Wrapf(models.ErrConfiguration, "parse static symbols %s: %v", path, err)
	}
	out := make([]models.Symbol, 0, len(list.Symbols))
	for _, s := range list.Symbols {
		out = append(out, models.NormalizeSymbol(s))
	}
	return out, nil
}

type Loader struct {
	catalog    *Catalog
	source     SymbolSource
	staticFile string
	filter     models.SymbolFilter
}

func NewLoader(catalog *Catalog, source SymbolSource, staticFile string, filter models.SymbolFilter) *Loader {
	return &Loader{
		catalog:    catalog,
		source:     source,
		staticFile: staticFile,
		filter:     filter,
	}
}

// Load биржа -> статический файл -> пусто. Пустая выдача биржи тоже считается отказом.
// Ошибка возвращается только когда не сработал ни один источник; каталог при этом
// не трогаем, чтобы обновление не стёрло уже загруженный список.
func (l *Loader) Load(ctx context.Context) (int, error) {
	var srcErr error
	if l.source != nil {
		syms, err := l.source.GetExchangeSymbols(ctx, l.filter)
		switch {
		case err != nil:
			srcErr = err
		case len(syms) == 0:
			srcErr = errors.Wrap(models.ErrUpstreamFetch, "exchange returned no symbols")
		default:
			n := l.catalog.Swap(syms)
			metrics.CatalogSymbols.Set(float64(n))
			logger.Info("[CATALOG] loaded %d symbols from exchange", n)
			return n, nil
		}
		logger.L().Warn("[CATALOG] exchange symbols unavailable", zap.Error(srcErr))
	}

	if l.staticFile != "" {
		syms, err := LoadStatic(l.staticFile)
		if err == nil && len(syms) > 0 {
			n := l.catalog.Swap(syms)
			metrics.CatalogSymbols.Set(float64(n))
			logger.Info("[CATALOG] loaded %d symbols from %s", n, l.staticFile)
			return n, nil
		}
		if err == nil {
			err = errors.Errorf("static list %s is empty", l.staticFile)
		}
		logger.L().Warn("[CATALOG] static symbols unavailable", zap.Error(err))
		if srcErr == nil {
			srcErr = err
		}
	}

	if srcErr == nil {
		srcErr = errors.New("no symbol source configured")
	}
	metrics.CatalogSymbols.Set(float64(l.catalog.Len()))
	return l.catalog.Len(), errors.Wrap(srcErr, "catalog load")
}

// RetryUntilLoaded повторяет Load каждые every, пока не будет успеха или отмены ctx.
// Пока каталог пуст, все поиски символов просто ничего не находят.
func (l *Loader) RetryUntilLoaded(ctx context.Context, every time.Duration, timeout time.Duration) bool {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			loadCtx, cancel := context.WithTimeout(ctx, timeout)
			_, err := l.Load(loadCtx)
			cancel()
			if err == nil {
				return true
			}
			logger.L().Warn("[CATALOG] load retry failed", zap.Error(err), zap.Duration("next_in", every))
		}
	}
}

// Run периодически перезагружает каталог до отмены ctx.
func (l *Loader) Run(ctx context.Context, every time.Duration, timeout time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			loadCtx, cancel := context.WithTimeout(ctx, timeout)
			if _, err := l.Load(loadCtx); err != nil {
				logger.L().Error("[CATALOG] refresh failed, keeping previous list", zap.Error(err))
			}
			cancel()
		}
	}
}
