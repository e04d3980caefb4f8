package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct{ alerts, symbols int }

func (f fakeStats) ActiveAlerts() int   { return f.alerts }
func (f fakeStats) CatalogSymbols() int { return f.symbols }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes_Readiness(t *testing.T) {
	state := NewState()
	mux := Routes(state, fakeStats{}, time.Minute)

	assert.Equal(t, http.StatusOK, get(t, mux, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetReady(true)
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)
}

func TestRoutes_StaleTickNotReady(t *testing.T) {
	state := NewState()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	state.now = func() time.Time { return now }
	state.SetReady(true)
	mux := Routes(state, fakeStats{}, time.Minute)

	state.TouchTick(now.Add(-30 * time.Second))
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)

	state.TouchTick(now.Add(-2 * time.Minute))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)
}

func TestRoutes_Healthz(t *testing.T) {
	state := NewState()
	state.SetReady(true)
	state.SetWSConnected(true)
	tick := time.Unix(1_700_000_000, 0)
	state.TouchTick(tick)
	mux := Routes(state, fakeStats{alerts: 3, symbols: 250}, 0)

	rec := get(t, mux, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp healthResp
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.True(t, resp.WSConnected)
	assert.Equal(t, tick.Unix(), resp.LastTickUnix)
	assert.False(t, resp.TickStale)
	assert.Equal(t, 3, resp.ActiveAlerts)
	assert.Equal(t, 250, resp.CatalogSymbols)
}

func TestRoutes_RootAndMetrics(t *testing.T) {
	mux := Routes(NewState(), fakeStats{}, 0)

	rec := get(t, mux, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Bot is running"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/nope").Code)

	rec = get(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alertbot_active_alerts")
}
