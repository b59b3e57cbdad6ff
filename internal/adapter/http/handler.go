package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clickflow/internal/core/port"
)

// Handler contains dependencies and routes. It is an inbound adapter for HTTP.
// It holds the click and conversion use cases, a validator for request
// bodies and a logger for structured logging. Routes are registered on a
// chi.Router for convenient method handling.
type Handler struct {
	clicks      port.ClickUseCase
	conversions port.ConversionUseCase
	validate    *validator.Validate
	logger      *slog.Logger
	router      chi.Router
}

// NewHandler creates a handler with all routes configured.
func NewHandler(clicks port.ClickUseCase, conversions port.ConversionUseCase, logger *slog.Logger) *Handler {
	h := &Handler{
		clicks:      clicks,
		conversions: conversions,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/clicks", h.handleTrackClick)
		r.Get("/go/{storeId}", h.handleRedirect)

		r.Get("/sessions/{userId}", h.handleGetSession)
		r.Delete("/sessions/{userId}", h.handleEndSession)

		r.Post("/webhooks/conversions", h.handleConversionWebhook)
		r.Route("/conversions/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetConversion)
			r.Post("/confirm", h.handleConfirmConversion)
			r.Post("/cancel", h.handleCancelConversion)
			r.Post("/refund", h.handleRefundConversion)
			r.Post("/fraud", h.handleReevaluateFraud)
			r.Get("/attribution", h.handleGetAttribution)
		})

		r.Get("/stats/sources", h.handleSourceStats)
	})
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
