package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"alert_bot/internal/helper"
	"alert_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const OKXBaseURL = "https://www.okx.com"

// OKX публичный REST: цены и список бессрочных свопов.
type OKX struct {
	baseURL string
	http    *http.Client
}

// OKXOption ...
type OKXOption func(*OKX)

func WithOKXBaseURL(u string) OKXOption {
	return func(o *OKX) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func NewOKX(timeout time.Duration, opts ...OKXOption) *OKX {
	o := &OKX{
		baseURL: OKXBaseURL,
		http:    newHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type okxTicker struct {
	InstType string `json:"instType"`
	InstID   string `json:"instId"`
	Last     string `json:"last"`
}

type okxTickerResp struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []okxTicker `json:"data"`
}

type okxInstrument struct {
	InstID    string `json:"instId"`
	InstType  string `json:"instType"`
	SettleCcy string `json:"settleCcy"`
	CtType    string `json:"ctType"` // linear | inverse
	State     string `json:"state"`  // live | suspend | preopen
}

type okxInstrumentResp struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data []okxInstrument `json:"data"`
}

func (o *OKX) GetAllPrices(ctx context.Context) (map[models.Symbol]decimal.Decimal, error) {
	var wrap okxTickerResp
	if err := getJSON(ctx, o.http, "okx.tickers", o.baseURL+"/api/v5/market/tickers?instType=SWAP", &wrap); err != nil {
		return nil, err
	}
	if wrap.Code != "0" {
		return nil, errors.Wrapf(models.ErrUpstreamFetch, "okx error: code=%s msg=%s", wrap.Code, wrap.Msg)
	}

	prices := make(map[models.Symbol]decimal.Decimal, len(wrap.Data))
	for _, t := range wrap.Data {
		sym, ok := helper.FromOKXInstID(t.InstID)
		if !ok {
			continue
		}
		px, ok := parsePrice(t.Last)
		if !ok {
			continue
		}
		prices[sym] = px
	}
	return prices, nil
}

func (o *OKX) GetExchangeSymbols(ctx context.Context, filter models.SymbolFilter) ([]models.Symbol, error) {
	ids, err := o.instrumentIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.Symbol, 0, len(ids))
	for _, id := range ids {
		if sym, ok := helper.FromOKXInstID(id); ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

// instrumentIDs живые линейные свопы в порядке ответа биржи.
func (o *OKX) instrumentIDs(ctx context.Context, filter models.SymbolFilter) ([]string, error) {
	var wrap okxInstrumentResp
	if err := getJSON(ctx, o.http, "okx.instruments", o.baseURL+"/api/v5/public/instruments?instType=SWAP", &wrap); err != nil {
		return nil, err
	}
	if wrap.Code != "0" {
		return nil, errors.Wrapf(models.ErrUpstreamFetch, "okx error: code=%s msg=%s", wrap.Code, wrap.Msg)
	}

	settle := strings.ToUpper(filter.SettleAsset)
	out := make([]string, 0, len(wrap.Data))
	seen := make(map[string]struct{}, len(wrap.Data))
	for _, in := range wrap.Data {
		if in.State != "live" {
			continue
		}
		if in.CtType != "" && in.CtType != "linear" {
			continue
		}
		if settle != "" && strings.ToUpper(in.SettleCcy) != settle {
			continue
		}
		if _, ok := seen[in.InstID]; ok {
			continue
		}
		seen[in.InstID] = struct{}{}
		out = append(out, in.InstID)
	}
	return out, nil
}
