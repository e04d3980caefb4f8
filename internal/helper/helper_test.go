package helper

import (
	"testing"

	"alert_bot/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFromOKXInstID(t *testing.T) {
	cases := []struct {
		in   string
		want models.Symbol
		ok   bool
	}{
		{"BTC-USDT-SWAP", "BTCUSDT", true},
		{"eth-usdt-swap", "ETHUSDT", true},
		{"BTC-USDT", "", false},
		{"BTC-USD-240329", "", false},
		{"-USDT-SWAP", "", false},
	}
	for _, c := range cases {
		got, ok := FromOKXInstID(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestToOKXInstID(t *testing.T) {
	id, ok := ToOKXInstID("BTCUSDT", "usdt")
	assert.True(t, ok)
	assert.Equal(t, "BTC-USDT-SWAP", id)

	_, ok = ToOKXInstID("USDT", "USDT")
	assert.False(t, ok)
	_, ok = ToOKXInstID("BTCUSDC", "USDT")
	assert.False(t, ok)
}

func TestFromMEXCSymbol(t *testing.T) {
	got, ok := FromMEXCSymbol("BTC_USDT")
	assert.True(t, ok)
	assert.Equal(t, models.Symbol("BTCUSDT"), got)

	for _, bad := range []string{"BTCUSDT", "_USDT", "BTC_", "A_B_C"} {
		_, ok := FromMEXCSymbol(bad)
		assert.False(t, ok, bad)
	}
}
