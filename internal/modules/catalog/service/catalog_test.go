package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alert_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_IsValid(t *testing.T) {
	c := NewCatalog("btcusdt", " ETHUSDT ", "BTCUSDT", "")

	assert.True(t, c.IsValid("BTCUSDT"))
	assert.True(t, c.IsValid("btcusdt"))
	assert.True(t, c.IsValid("ETHUSDT"))
	assert.False(t, c.IsValid("XYZXYZ"))
	assert.False(t, c.IsValid(""))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []models.Symbol{"BTCUSDT", "ETHUSDT"}, c.Symbols())
}

func TestCatalog_Find(t *testing.T) {
	c := NewCatalog("ETHBTC", "BTCUSDT", "ETHUSDT", "BTCDOMUSDT", "WBTCUSDT", "SOLUSDT")

	t.Run("exact wins alone", func(t *testing.T) {
		assert.Equal(t, []models.Symbol{"BTCUSDT"}, c.Find("btcusdt", 10))
	})

	t.Run("prefix before substring in catalog order", func(t *testing.T) {
		assert.Equal(t,
			[]models.Symbol{"BTCUSDT", "BTCDOMUSDT", "ETHBTC", "WBTCUSDT"},
			c.Find("BTC", 10))
	})

	t.Run("separators are ignored", func(t *testing.T) {
		assert.Equal(t, []models.Symbol{"SOLUSDT"}, c.Find("sol-usdt", 10))
		assert.Equal(t, []models.Symbol{"SOLUSDT"}, c.Find("SOL/USDT", 10))
	})

	t.Run("limit", func(t *testing.T) {
		assert.Equal(t, []models.Symbol{"BTCUSDT", "BTCDOMUSDT"}, c.Find("BTC", 2))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, c.Find("XYZXYZ", 10))
		assert.Empty(t, c.Find("   ", 10))
	})
}

func TestCatalog_EmptyFailsClosed(t *testing.T) {
	c := NewCatalog()
	assert.False(t, c.IsValid("BTCUSDT"))
	assert.Empty(t, c.Find("BTC", 10))
}

func TestCatalog_SwapIsAtomicForReaders(t *testing.T) {
	a := []models.Symbol{"AAAUSDT", "AABUSDT"}
	b := []models.Symbol{"BBBUSDT", "BBCUSDT", "BBDUSDT"}
	c := NewCatalog(a...)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				c.Swap(b)
			} else {
				c.Swap(a)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		got := c.Symbols()
		// снимок всегда целиком один из двух списков
		if len(got) == 2 {
			assert.Equal(t, a, got)
		} else {
			assert.Equal(t, b, got)
		}
	}
	close(stop)
	wg.Wait()
}

type fakeSource struct {
	syms []models.Symbol
	err  error
}

func (f fakeSource) GetExchangeSymbols(context.Context, models.SymbolFilter) ([]models.Symbol, error) {
	return f.syms, f.err
}

func writeStatic(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	static := writeStatic(t, "symbols:\n  - btcusdt\n  - ETHUSDT\n")

	t.Run("exchange first", func(t *testing.T) {
		c := NewCatalog()
		n, err := NewLoader(c, fakeSource{syms: []models.Symbol{"SOLUSDT"}}, static, models.SymbolFilter{}).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.True(t, c.IsValid("SOLUSDT"))
		assert.False(t, c.IsValid("BTCUSDT"))
	})

	t.Run("static fallback on exchange error", func(t *testing.T) {
		c := NewCatalog()
		n, err := NewLoader(c, fakeSource{err: errors.Wrap(models.ErrUpstreamFetch, "down")}, static, models.SymbolFilter{}).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.True(t, c.IsValid("BTCUSDT"))
	})

	t.Run("static fallback on empty exchange list", func(t *testing.T) {
		c := NewCatalog()
		_, err := NewLoader(c, fakeSource{}, static, models.SymbolFilter{}).Load(context.Background())
		require.NoError(t, err)
		assert.True(t, c.IsValid("ETHUSDT"))
	})

	t.Run("both fail keeps catalog", func(t *testing.T) {
		c := NewCatalog("XRPUSDT")
		n, err := NewLoader(c, fakeSource{err: errors.Wrap(models.ErrUpstreamFetch, "down")}, filepath.Join(t.TempDir(), "missing.yaml"), models.SymbolFilter{}).Load(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrUpstreamFetch))
		assert.Equal(t, 1, n)
		assert.True(t, c.IsValid("XRPUSDT"))
	})

	t.Run("nothing configured", func(t *testing.T) {
		c := NewCatalog()
		_, err := NewLoader(c, nil, "", models.SymbolFilter{}).Load(context.Background())
		require.Error(t, err)
		assert.Equal(t, 0, c.Len())
	})
}

func TestLoadStatic_BadYAML(t *testing.T) {
	_, err := LoadStatic(writeStatic(t, "symbols: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

type flakySource struct {
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakySource) GetExchangeSymbols(context.Context, models.SymbolFilter) ([]models.Symbol, error) {
	if f.calls.Add(1) <= f.failures.Load() {
		return nil, errors.Wrap(models.ErrUpstreamFetch, "down")
	}
	return []models.Symbol{"BTCUSDT"}, nil
}

func TestLoader_RetryUntilLoaded(t *testing.T) {
	src := &flakySource{}
	src.failures.Store(2)
	c := NewCatalog()
	l := NewLoader(c, src, "", models.SymbolFilter{})

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.False(t, c.IsValid("BTCUSDT"), "empty catalog fails closed")

	ok := l.RetryUntilLoaded(context.Background(), 5*time.Millisecond, time.Second)
	assert.True(t, ok)
	assert.True(t, c.IsValid("BTCUSDT"))
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestLoader_RetryStopsOnCancel(t *testing.T) {
	src := &flakySource{}
	src.failures.Store(1 << 30)
	l := NewLoader(NewCatalog(), src, "", models.SymbolFilter{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.False(t, l.RetryUntilLoaded(ctx, 5*time.Millisecond, time.Second))
}
