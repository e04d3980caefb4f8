package helper

import (
	"strings"

	"alert_bot/internal/models"
)

// FromOKXInstID BTC-USDT-SWAP -> BTCUSDT. Для не-SWAP инструментов ok=false.
func FromOKXInstID(instID string) (models.Symbol, bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(instID)), "-")
	if len(parts) != 3 || parts[2] != "SWAP" {
		return "", false
	}
	if parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return models.Symbol(parts[0] + parts[1]), true
}

// ToOKXInstID обратное преобразование; котируемый актив нужно знать заранее.
func ToOKXInstID(sym models.Symbol, quote string) (string, bool) {
	base, ok := SplitQuote(sym, quote)
	if !ok {
		return "", false
	}
	return base + "-" + strings.ToUpper(quote) + "-SWAP", true
}

// FromMEXCSymbol BTC_USDT -> BTCUSDT.
func FromMEXCSymbol(raw string) (models.Symbol, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	i := strings.IndexByte(s, '_')
	if i <= 0 || i >= len(s)-1 || strings.Count(s, "_") != 1 {
		return "", false
	}
	return models.Symbol(s[:i] + s[i+1:]), true
}

// SplitQuote отрезает котируемый актив: BTCUSDT, USDT -> BTC.
func SplitQuote(sym models.Symbol, quote string) (string, bool) {
	s := strings.ToUpper(string(sym))
	q := strings.ToUpper(quote)
	if q == "" || len(s) <= len(q) || !strings.HasSuffix(s, q) {
		return "", false
	}
	return s[:len(s)-len(q)], true
}
