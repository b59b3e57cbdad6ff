package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleConversionWebhook reconciles a merchant conversion. A new
// conversion is answered with HTTP 201 and a replay of a known order with
// HTTP 200. An unknown click yields HTTP 404 and an invalid payload HTTP
// 400.
func (h *Handler) handleConversionWebhook(w http.ResponseWriter, r *http.Request) {
	var req conversionWebhookRequest
	if err := h.decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, "conversion webhook", err)
		return
	}
	res, err := h.conversions.HandleConversionWebhook(r.Context(), req.payload())
	if err != nil {
		h.writeError(w, r, "conversion webhook", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, h.logger, status, res)
}

func (h *Handler) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversions.GetConversion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get conversion", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, conv)
}

func (h *Handler) handleConfirmConversion(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversions.ConfirmConversion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "confirm conversion", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, conv)
}

func (h *Handler) handleCancelConversion(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := h.decodeBody(r, &req, true); err != nil {
		h.writeError(w, r, "cancel conversion", err)
		return
	}
	conv, err := h.conversions.CancelConversion(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, "cancel conversion", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, conv)
}

// handleRefundConversion refunds fully without a body or percent, and
// partially with {"percent": p}.
func (h *Handler) handleRefundConversion(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := h.decodeBody(r, &req, true); err != nil {
		h.writeError(w, r, "refund conversion", err)
		return
	}
	conv, err := h.conversions.RefundConversion(r.Context(), chi.URLParam(r, "id"), req.Percent)
	if err != nil {
		h.writeError(w, r, "refund conversion", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, conv)
}

func (h *Handler) handleReevaluateFraud(w http.ResponseWriter, r *http.Request) {
	a, err := h.conversions.ReevaluateFraud(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "reevaluate fraud", err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, a)
}

func (h *Handler) handleGetAttribution(w http.ResponseWriter, r *http.Request) {
	rec, err := h.conversions.GetAttribution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get attribution", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rec)
}
