package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"alert_bot/internal/helper"
	"alert_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const MEXCBaseURL = "https://contract.mexc.com"

// MEXC публичный REST фьючерсов.
type MEXC struct {
	baseURL string
	http    *http.Client
}

func NewMEXC(timeout time.Duration, baseURL string) *MEXC {
	m := &MEXC{
		baseURL: MEXCBaseURL,
		http:    newHTTPClient(timeout),
	}
	if baseURL != "" {
		m.baseURL = strings.TrimRight(baseURL, "/")
	}
	return m
}

type mexcTicker struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"lastPrice"`
}

type mexcContract struct {
	Symbol     string `json:"symbol"`
	SettleCoin string `json:"settleCoin"`
	State      int    `json:"state"` // 0 = торгуется
}

type mexcResp struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeData data у MEXC бывает и массивом, и одиночным объектом.
func decodeData[T any](op string, wrap mexcResp, valid func(T) bool) ([]T, error) {
	if !wrap.Success {
		return nil, errors.Wrapf(models.ErrUpstreamFetch, "%s: success=false code=%d msg=%s", op, wrap.Code, wrap.Message)
	}
	var arr []T
	if err := sonic.Unmarshal(wrap.Data, &arr); err == nil {
		return arr, nil
	}
	var one T
	if err := sonic.Unmarshal(wrap.Data, &one); err == nil && valid(one) {
		return []T{one}, nil
	}
	return nil, errors.Wrapf(models.ErrUpstreamFetch, "%s: unexpected data shape", op)
}

func (m *MEXC) GetAllPrices(ctx context.Context) (map[models.Symbol]decimal.Decimal, error) {
	var wrap mexcResp
	if err := getJSON(ctx, m.http, "mexc.tickers", m.baseURL+"/api/v1/contract/ticker", &wrap); err != nil {
		return nil, err
	}
	tickers, err := decodeData("mexc.tickers", wrap, func(t mexcTicker) bool { return t.Symbol != "" })
	if err != nil {
		return nil, err
	}

	prices := make(map[models.Symbol]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		sym, ok := helper.FromMEXCSymbol(t.Symbol)
		if !ok || !t.LastPrice.IsPositive() || !models.InPriceRange(t.LastPrice) {
			continue
		}
		prices[sym] = t.LastPrice
	}
	return prices, nil
}

func (m *MEXC) GetExchangeSymbols(ctx context.Context, filter models.SymbolFilter) ([]models.Symbol, error) {
	var wrap mexcResp
	if err := getJSON(ctx, m.http, "mexc.contracts", m.baseURL+"/api/v1/contract/detail", &wrap); err != nil {
		return nil, err
	}
	contracts, err := decodeData("mexc.contracts", wrap, func(c mexcContract) bool { return c.Symbol != "" })
	if err != nil {
		return nil, err
	}

	settle := strings.ToUpper(filter.SettleAsset)
	out := make([]models.Symbol, 0, len(contracts))
	seen := make(map[models.Symbol]struct{}, len(contracts))
	for _, c := range contracts {
		if c.State != 0 {
			continue
		}
		if settle != "" && strings.ToUpper(c.SettleCoin) != settle {
			continue
		}
		sym, ok := helper.FromMEXCSymbol(c.Symbol)
		if !ok {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, nil
}
