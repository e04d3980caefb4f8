package service

import (
	"net/http"

	"alert_bot/pkg/logger"

	"go.uber.org/zap"
)

// WebhookHandler всегда отвечает 200: иначе Telegram будет слать тот же апдейт повторно.
func (t *Telegram) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upd, err := t.parse(r)
		if err != nil {
			logger.L().Warn("[TG] bad webhook payload", zap.String("method", r.Method), zap.Error(err))
			w.WriteHeader(http.StatusOK)
			return
		}
		t.HandleUpdate(r.Context(), *upd)
		w.WriteHeader(http.StatusOK)
	})
}
