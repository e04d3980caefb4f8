package service

import (
	"context"
	"sort"

	"alert_bot/internal/models"
	"alert_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PriceSource interface {
	GetAllPrices(ctx context.Context) (map[models.Symbol]decimal.Decimal, error)
}

type Catalog interface {
	Symbols() []models.Symbol
}

// Coverage сколько символов каталога реально есть в таблице цен.
// Алерт на символ без цены никогда не сработает.
type Coverage struct {
	Catalog int
	Priced  int
	Missing []models.Symbol
}

// Prober одна пробная выборка цен на старте.
type Prober struct {
	src     PriceSource
	catalog Catalog
}

func NewProber(src PriceSource, catalog Catalog) *Prober {
	return &Prober{src: src, catalog: catalog}
}

func (p *Prober) Probe(ctx context.Context) (Coverage, error) {
	prices, err := p.src.GetAllPrices(ctx)
	if err != nil {
		return Coverage{}, errors.Wrap(err, "probe price source")
	}

	symbols := p.catalog.Symbols()
	cov := Coverage{Catalog: len(symbols)}
	for _, s := range symbols {
		if _, ok := prices[s]; ok {
			cov.Priced++
			continue
		}
		cov.Missing = append(cov.Missing, s)
	}
	sort.Slice(cov.Missing, func(i, j int) bool { return cov.Missing[i] < cov.Missing[j] })
	return cov, nil
}

// Log пишет итог пробы; пропущенные символы только первые limit штук.
func (c Coverage) Log(limit int) {
	if len(c.Missing) == 0 {
		logger.Info("[BOOT] price probe ok: %d/%d catalog symbols priced", c.Priced, c.Catalog)
		return
	}
	shown := c.Missing
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	names := make([]string, len(shown))
	for i, s := range shown {
		names[i] = string(s)
	}
	logger.L().Warn("[BOOT] catalog symbols without price",
		zap.Int("priced", c.Priced),
		zap.Int("catalog", c.Catalog),
		zap.Int("missing", len(c.Missing)),
		zap.Strings("sample", names),
	)
}
