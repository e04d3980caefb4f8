package service

import (
	"context"
	"sync/atomic"
	"time"

	"alert_bot/internal/metrics"
	"alert_bot/internal/models"
	"alert_bot/pkg/logger"
	"alert_bot/pkg/tracing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ErrTickInProgress тик уже идёт; новый не запускаем.
var ErrTickInProgress = errors.New("tick already in progress")

type PriceSource interface {
	GetAllPrices(ctx context.Context) (map[models.Symbol]decimal.Decimal, error)
}

type Registry interface {
	ForEachActive() []models.Alert
	ObservePrices(prices map[models.Symbol]decimal.Decimal)
	Take(id models.AlertID) (models.Alert, bool)
}

type Notifier interface {
	Send(ctx context.Context, owner int64, text string) error
}

// TickRecorder отметка последнего тика для health.
type TickRecorder interface {
	TouchTick(t time.Time)
}

type Config struct {
	Interval          time.Duration
	FetchTimeout      time.Duration
	NotifyTimeout     time.Duration
	NotifyConcurrency int
}

// TickResult итог одного тика, в основном для тестов и логов.
type TickResult struct {
	Active    int
	Priced    int
	Triggered []models.Alert
	NotifyErr int
}

type Loop struct {
	cfg      Config
	prices   PriceSource
	registry Registry
	notifier Notifier
	recorder TickRecorder
	now      func() time.Time

	running atomic.Bool
}

func NewLoop(cfg Config, prices PriceSource, registry Registry, notifier Notifier, recorder TickRecorder) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.NotifyConcurrency < 1 {
		cfg.NotifyConcurrency = 1
	}
	return &Loop{
		cfg:      cfg,
		prices:   prices,
		registry: registry,
		notifier: notifier,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run первый тик сразу, дальше по тикеру. Тики идут в одной горутине и не перекрываются.
func (l *Loop) Run(ctx context.Context) {
	logger.Info("[TRIGGER] loop started, interval=%s", l.cfg.Interval)
	t := time.NewTicker(l.cfg.Interval)
	defer t.Stop()

	for {
		l.safeTick(ctx)
		select {
		case <-ctx.Done():
			logger.Info("[TRIGGER] loop stopped")
			return
		case <-t.C:
		}
	}
}

func (l *Loop) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Ticks.WithLabelValues("error").Inc()
			logger.L().Error("[TRIGGER] tick panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if ctx.Err() != nil {
		return
	}
	if _, err := l.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) {
		logger.L().Warn("[TRIGGER] tick failed, will retry next tick", zap.Error(err))
	}
}

// Tick одна проверка всех активных алертов: один запрос цен, сравнение,
// удаление сработавших и рассылка. Возвращается после всех отправок.
func (l *Loop) Tick(ctx context.Context) (res TickResult, err error) {
	if !l.running.CompareAndSwap(false, true) {
		return res, ErrTickInProgress
	}
	defer l.running.Store(false)

	started := l.now()
	span, ctx := tracing.StartSpan(ctx, "trigger.tick")
	defer func() {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case res.Active == 0:
			status = "idle"
		}
		metrics.Ticks.WithLabelValues(status).Inc()
		metrics.TickDuration.Observe(time.Since(started).Seconds())
		if l.recorder != nil {
			l.recorder.TouchTick(started)
		}
		span.SetTag("alerts.active", res.Active)
		span.SetTag("alerts.triggered", len(res.Triggered))
		tracing.Fail(span, err)
		span.Finish()
	}()

	active := l.registry.ForEachActive()
	res.Active = len(active)
	if len(active) == 0 {
		return res, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.cfg.FetchTimeout)
	prices, err := l.prices.GetAllPrices(fetchCtx)
	cancel()
	if err != nil {
		metrics.PriceFetchErrors.Inc()
		if !errors.Is(err, models.ErrUpstreamFetch) {
			err = errors.Wrapf(models.ErrUpstreamFetch, "get prices: %v", err)
		}
		return res, err
	}

	l.registry.ObservePrices(prices)

	at := l.now()
	for _, a := range active {
		px, ok := prices[a.Symbol]
		if !ok {
			logger.Debug("[TRIGGER] no price for %s, alert %s untouched", a.Symbol, a.ID)
			continue
		}
		res.Priced++
		if !a.Direction.Crossed(px, a.Threshold) {
			continue
		}

		// Take между снимком и сюда мог проиграть Remove из чата; тогда молчим
		taken, ok := l.registry.Take(a.ID)
		if !ok {
			continue
		}
		if err := taken.Trigger(px, at); err != nil {
			logger.L().Error("[TRIGGER] bad alert state", zap.Error(err))
			continue
		}
		res.Triggered = append(res.Triggered, taken)
	}

	if len(res.Triggered) == 0 {
		return res, nil
	}
	metrics.AlertsTriggered.Add(float64(len(res.Triggered)))
	res.NotifyErr = l.notifyAll(ctx, res.Triggered)
	return res, nil
}

// notifyAll рассылка с ограничением параллелизма; ошибки только считаем.
func (l *Loop) notifyAll(ctx context.Context, fired []models.Alert) int {
	var failed atomic.Int32
	p := pool.New().WithMaxGoroutines(l.cfg.NotifyConcurrency)
	for _, a := range fired {
		p.Go(func() {
			sendCtx, cancel := context.WithTimeout(ctx, l.cfg.NotifyTimeout)
			defer cancel()
			if err := l.notifier.Send(sendCtx, a.Owner, a.NotificationText(a.TriggerPrice)); err != nil {
				failed.Add(1)
				metrics.NotifyErrors.Inc()
				logger.L().Warn("[TRIGGER] notify failed, alert stays removed",
					zap.String("alert", string(a.ID)),
					zap.Int64("owner", a.Owner),
					zap.String("symbol", string(a.Symbol)),
					zap.Error(err),
				)
				return
			}
			logger.L().Info("[TRIGGER] alert fired",
				zap.String("alert", string(a.ID)),
				zap.Int64("owner", a.Owner),
				zap.String("symbol", string(a.Symbol)),
				zap.String("price", a.TriggerPrice.String()),
				zap.String("threshold", a.Threshold.String()),
			)
		})
	}
	p.Wait()
	return int(failed.Load())
}
