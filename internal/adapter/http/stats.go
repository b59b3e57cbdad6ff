package httpadapter

import (
	"net/http"

	"clickflow/internal/core/domain"
)

// handleSourceStats returns the click and unique user counters of the
// traffic source named by the `source` query parameter. A missing or
// unknown source results in HTTP 400.
func (h *Handler) handleSourceStats(w http.ResponseWriter, r *http.Request) {
	source := domain.TrafficSource(r.URL.Query().Get("source"))
	stats, err := h.clicks.SourceStats(r.Context(), source)
	if err != nil {
		h.writeError(w, r, "source stats", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}
