package handlers

import (
	"net/http"

	"github.com/nkiryanov/payledger/internal/handlers/render"
	"github.com/nkiryanov/payledger/internal/logger"
)

func handleHealth(db pinger, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			l.Error("Health check failed", "error", err)
			render.ServiceError(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}

		render.JSON(w, map[string]string{"status": "ok"})
	})
}
