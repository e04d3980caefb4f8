package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Symbol торговый инструмент в виде BASEQUOTE, например BTCUSDT.
type Symbol string

func (s Symbol) String() string { return string(s) }

// NormalizeSymbol приводит ввод к виду символа каталога: trim + upper.
func NormalizeSymbol(raw string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(raw)))
}

type Direction string

const (
	DirectionAtOrAbove Direction = "AT_OR_ABOVE"
	DirectionAtOrBelow Direction = "AT_OR_BELOW"
)

// ParseDirection понимает текст кнопок и ручной ввод.
func ParseDirection(token string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "ABOVE", "UP", "MAX", ">", ">=", string(DirectionAtOrAbove):
		return DirectionAtOrAbove, true
	case "BELOW", "DOWN", "MIN", "<", "<=", string(DirectionAtOrBelow):
		return DirectionAtOrBelow, true
	}
	return "", false
}

func (d Direction) Label() string {
	switch d {
	case DirectionAtOrAbove:
		return "above"
	case DirectionAtOrBelow:
		return "below"
	default:
		return "unknown"
	}
}

// Crossed: цена на пороге или за ним в нужную сторону.
func (d Direction) Crossed(price, threshold decimal.Decimal) bool {
	switch d {
	case DirectionAtOrAbove:
		return price.GreaterThanOrEqual(threshold)
	case DirectionAtOrBelow:
		return price.LessThanOrEqual(threshold)
	default:
		return false
	}
}

type AlertStatus string

const (
	AlertPendingInput AlertStatus = "PENDING_INPUT"
	AlertActive       AlertStatus = "ACTIVE"
	AlertTriggered    AlertStatus = "TRIGGERED"
)

type AlertID string

// Alert одна подписка пользователя на пересечение цены.
type Alert struct {
	ID        AlertID
	Owner     int64 // Telegram chat ID
	Symbol    Symbol
	Direction Direction
	Threshold decimal.Decimal
	Status    AlertStatus

	// LastObservedPrice nil пока не было ни одного тика с ценой по символу.
	LastObservedPrice *decimal.Decimal

	CreatedAt    time.Time
	TriggeredAt  time.Time
	TriggerPrice decimal.Decimal
}

func NewAlert(owner int64, symbol Symbol, direction Direction, threshold decimal.Decimal, now time.Time) Alert {
	return Alert{
		Owner:     owner,
		Symbol:    symbol,
		Direction: direction,
		Threshold: threshold,
		Status:    AlertActive,
		CreatedAt: now,
	}
}

// Trigger переводит ACTIVE -> TRIGGERED. Назад дороги нет.
func (a *Alert) Trigger(price decimal.Decimal, at time.Time) error {
	if a.Status != AlertActive {
		return errors.Errorf("alert %s: cannot trigger from status %s", a.ID, a.Status)
	}
	a.Status = AlertTriggered
	a.TriggeredAt = at
	a.TriggerPrice = price
	return nil
}

// NotificationText то, что получит владелец при срабатывании.
func (a Alert) NotificationText(price decimal.Decimal) string {
	return fmt.Sprintf("🔔 %s reached %s (target %s, %s)",
		a.Symbol, price.String(), a.Threshold.String(), a.Direction.Label())
}

const (
	maxThresholdLen = 64
	// границы порядка числа: 1e-30 .. 1e30. Экспонента в 1e900000000 иначе
	// превращается в строку/сравнение на сотни миллионов цифр.
	maxPriceExp = 30
	minPriceExp = -30
)

// InPriceRange цена с разумным числом знаков до и после запятой.
// Проверка дешёвая: NumDigits и Exponent не раскрывают экспоненту.
func InPriceRange(v decimal.Decimal) bool {
	exp := int(v.Exponent())
	if exp < minPriceExp {
		return false
	}
	return v.NumDigits()+exp <= maxPriceExp
}

// ParseThreshold разбирает цену из чата: запятая как разделитель тоже ок.
func ParseThreshold(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || len(s) > maxThresholdLen {
		return decimal.Zero, errors.Wrapf(ErrValidation, "invalid number %q", raw)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrValidation, "invalid number %q", raw)
	}
	if !v.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrValidation, "number must be positive: %q", raw)
	}
	if !InPriceRange(v) {
		return decimal.Zero, errors.Wrapf(ErrValidation, "number out of range: %q", raw)
	}
	return v, nil
}
