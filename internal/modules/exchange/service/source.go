package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"alert_bot/internal/models"
	"alert_bot/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PriceSource таблица последних цен и список торгуемых символов биржи.
type PriceSource interface {
	// GetAllPrices один запрос на весь рынок. Символы без цены в ответ не попадают.
	GetAllPrices(ctx context.Context) (map[models.Symbol]decimal.Decimal, error)
	GetExchangeSymbols(ctx context.Context, filter models.SymbolFilter) ([]models.Symbol, error)
}

const maxBodySize = 16 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// getJSON GET + декод через sonic. Любая ошибка сети/статуса/формата -> ErrUpstreamFetch.
func getJSON(ctx context.Context, client *http.Client, op, url string, out any) (err error) {
	span, ctx := tracing.StartSpan(ctx, op)
	defer func() {
		tracing.Fail(span, err)
		span.Finish()
	}()
	span.SetTag("http.url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(models.ErrUpstreamFetch, "%s: build request: %v", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(models.ErrUpstreamFetch, "%s: %v", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Wrapf(models.ErrUpstreamFetch, "%s: read body: %v", op, err)
	}
	span.SetTag("http.status_code", resp.StatusCode)
	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(models.ErrUpstreamFetch, "%s: non-2xx: %d %s", op, resp.StatusCode, truncate(body, 256))
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return errors.Wrapf(models.ErrUpstreamFetch, "%s: decode: %v", op, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// parsePrice пустые, нулевые, отрицательные и абсурдные по порядку цены отбрасываем.
func parsePrice(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.IsPositive() || !models.InPriceRange(v) {
		return decimal.Zero, false
	}
	return v, true
}
