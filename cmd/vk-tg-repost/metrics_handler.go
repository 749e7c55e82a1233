package main

import (
	"encoding/json"
	"net/http"

	"github.com/Memesold/vk-tg-repost-bot/internal/metrics"
	"github.com/Memesold/vk-tg-repost-bot/internal/tracing"
)

// handleMetrics returns current application metrics
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := tracing.GetOtelTraceID(r.Context())

		allMetrics := metrics.GetAllMetrics()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(allMetrics); err != nil {
			s.logger.WithField("trace_id", traceID).WithError(err).Error("Failed to encode metrics response")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}
}
