package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger - всё, что умеет проверить соединение (*sql.DB)
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse - ответ GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthHandler отвечает healthy, если база доступна
func HealthHandler(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.HealthHandler"))

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("database is unavailable", slog.Any("error", err))
			writeJSON(logger, w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Timestamp: time.Now().UTC()})
			return
		}
		writeJSON(logger, w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
	}
}
