package service

import (
	"net/http"
	"time"

	"alert_bot/internal/metrics"
	"alert_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Stats счётчики домена для /healthz.
type Stats interface {
	ActiveAlerts() int
	CatalogSymbols() int
}

type healthResp struct {
	Ready          bool  `json:"ready"`
	WSConnected    bool  `json:"wsConnected"`
	UptimeSec      int64 `json:"uptimeSec"`
	LastTickUnix   int64 `json:"lastTickUnix"`
	TickStale      bool  `json:"tickStale"`
	ActiveAlerts   int   `json:"activeAlerts"`
	CatalogSymbols int   `json:"catalogSymbols"`
}

// Routes служебные ручки. tickMaxAge: после скольких секунд без тика /readyz отвечает 503.
func Routes(state *State, stats Stats, tickMaxAge time.Duration) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Bot is running"})
	})

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !state.Ready() || state.TickStale(tickMaxAge) {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResp{
			Ready:          state.Ready(),
			WSConnected:    state.WSConnected(),
			UptimeSec:      int64(state.Uptime().Seconds()),
			TickStale:      state.TickStale(tickMaxAge),
			ActiveAlerts:   stats.ActiveAlerts(),
			CatalogSymbols: stats.CatalogSymbols(),
		}
		if t := state.LastTick(); !t.IsZero() {
			resp.LastTickUnix = t.Unix()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.Handle("/metrics", metrics.Handler())

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		logger.L().Error("[HEALTH] encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
