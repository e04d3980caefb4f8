package service

import (
	"context"
	"sync"
	"time"

	"alert_bot/internal/helper"
	"alert_bot/internal/models"
	"alert_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	OKXPublicWSURL = "wss://ws.okx.com:8443/ws/v5/public"

	subscribeBatch   = 100
	defaultPingEvery = 20 * time.Second
)

type quote struct {
	price decimal.Decimal
	at    time.Time
}

// Stream держит цены из WS-канала tickers OKX. Пока кэш пустой или протух,
// GetAllPrices уходит в REST.
type Stream struct {
	rest   *OKX
	url    string
	maxAge time.Duration
	filter models.SymbolFilter
	dialer *websocket.Dialer
	now    func() time.Time

	// pingEvery период пинга; тишина дольше двух периодов значит мёртвое соединение
	pingEvery time.Duration

	mu     sync.RWMutex
	quotes map[models.Symbol]quote

	// OnConnect вызывается при каждом (пере)подключении; для health.
	OnConnect func(connected bool)
}

func NewStream(rest *OKX, url string, maxAge time.Duration, filter models.SymbolFilter) *Stream {
	if url == "" {
		url = OKXPublicWSURL
	}
	if maxAge <= 0 {
		maxAge = 2 * time.Minute
	}
	return &Stream{
		rest:   rest,
		url:    url,
		maxAge: maxAge,
		filter: filter,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:       time.Now,
		pingEvery: defaultPingEvery,
		quotes:    make(map[models.Symbol]quote),
	}
}

func (s *Stream) GetAllPrices(ctx context.Context) (map[models.Symbol]decimal.Decimal, error) {
	if prices := s.fresh(); len(prices) > 0 {
		return prices, nil
	}
	return s.rest.GetAllPrices(ctx)
}

func (s *Stream) GetExchangeSymbols(ctx context.Context, filter models.SymbolFilter) ([]models.Symbol, error) {
	return s.rest.GetExchangeSymbols(ctx, filter)
}

func (s *Stream) fresh() map[models.Symbol]decimal.Decimal {
	cutoff := s.now().Add(-s.maxAge)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.Symbol]decimal.Decimal, len(s.quotes))
	for sym, q := range s.quotes {
		if q.at.Before(cutoff) {
			continue
		}
		out[sym] = q.price
	}
	return out
}

func (s *Stream) store(sym models.Symbol, px decimal.Decimal) {
	s.mu.Lock()
	s.quotes[sym] = quote{price: px, at: s.now()}
	s.mu.Unlock()
}

type wsTickerFrame struct {
	Event string `json:"event"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []okxTicker `json:"data"`
}

// handleMessage разбирает один кадр; возвращает число обновлённых цен.
func (s *Stream) handleMessage(msg []byte) int {
	if string(msg) == "pong" {
		return 0
	}
	var frame wsTickerFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return 0
	}
	if frame.Event == "error" {
		logger.Warn("[WS] okx error: %s", frame.Msg)
		return 0
	}
	if frame.Arg.Channel != "tickers" {
		return 0
	}
	n := 0
	for _, t := range frame.Data {
		sym, ok := helper.FromOKXInstID(t.InstID)
		if !ok {
			continue
		}
		px, ok := parsePrice(t.Last)
		if !ok {
			continue
		}
		s.store(sym, px)
		n++
	}
	return n
}

// Run подписывается на tickers всех инструментов и переподключается до отмены ctx.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		ids, err := s.rest.instrumentIDs(ctx, s.filter)
		if err != nil || len(ids) == 0 {
			logger.Warn("[WS] no instruments to stream: %v", err)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		connected, err := s.session(ctx, ids)
		if s.OnConnect != nil {
			s.OnConnect(false)
		}
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = time.Second
		}
		logger.L().Warn("[WS] session ended", zap.Error(err), zap.Duration("retry_in", backoff))
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Stream) session(ctx context.Context, ids []string) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	for start := 0; start < len(ids); start += subscribeBatch {
		end := start + subscribeBatch
		if end > len(ids) {
			end = len(ids)
		}
		args := make([]map[string]string, 0, end-start)
		for _, id := range ids[start:end] {
			args = append(args, map[string]string{"channel": "tickers", "instId": id})
		}
		payload, err := sonic.Marshal(map[string]any{"op": "subscribe", "args": args})
		if err != nil {
			return false, err
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return false, err
		}
	}
	logger.Info("[WS] subscribed tickers: %d instruments", len(ids))
	if s.OnConnect != nil {
		s.OnConnect(true)
	}

	// OKX закрывает соединение после 30с тишины; текстовый ping раз в 20с
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(s.pingEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-t.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	// OKX отвечает "pong" на каждый ping, так что живое соединение не молчит дольше периода
	readWait := 2 * s.pingEvery
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
			return true, err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		s.handleMessage(msg)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
