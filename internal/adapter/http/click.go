package httpadapter

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleTrackClick records a click described by the JSON body and returns
// it with HTTP 201. The caller's user agent and address fill in missing
// device hints.
func (h *Handler) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	var req trackClickRequest
	if err := h.decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, "track click", err)
		return
	}
	in := req.input()
	if in.UserAgent == "" {
		in.UserAgent = r.UserAgent()
	}
	if in.IPAddress == "" {
		in.IPAddress = clientIP(r)
	}
	click, err := h.clicks.TrackClick(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "track click", err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, click)
}

// handleRedirect records a click for the {storeId} path parameter and
// redirects to the url query parameter. The u parameter names the user and
// src the traffic source. Invalid parameters result in HTTP 400. A click
// that cannot be stored fails the request rather than redirecting
// untracked.
func (h *Handler) handleRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := redirectQuery{UserID: q.Get("u"), URL: q.Get("url"), Source: q.Get("src")}
	if err := h.validateStruct(params); err != nil {
		h.writeError(w, r, "redirect", err)
		return
	}
	req := trackClickRequest{
		UserID:         params.UserID,
		StoreID:        chi.URLParam(r, "storeId"),
		OriginalURL:    r.URL.String(),
		DestinationURL: params.URL,
		Source:         params.Source,
		UserAgent:      r.UserAgent(),
		IPAddress:      clientIP(r),
		Country:        r.Header.Get("CF-IPCountry"),
		DeviceType:     q.Get("device"),
	}
	if details := sourceDetails(q.Get("channel"), q.Get("campaign")); len(details) > 0 {
		req.SourceDetails = details
	}
	click, err := h.clicks.TrackClick(r.Context(), req.input())
	if err != nil {
		h.writeError(w, r, "redirect", err)
		return
	}
	w.Header().Set("X-Click-Id", click.ClickID)
	http.Redirect(w, r, click.DestinationURL, http.StatusFound)
}

// handleGetSession returns the user's active session or HTTP 404.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.clicks.GetSession(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, "get session", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sess)
}

// handleEndSession ends the user's active session. Ending a user without
// one is not an error.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.clicks.EndSession(r.Context(), chi.URLParam(r, "userId")); err != nil {
		h.writeError(w, r, "end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sourceDetails(channel, campaign string) map[string]string {
	out := make(map[string]string, 2)
	if channel != "" {
		out["channel"] = channel
	}
	if campaign != "" {
		out["campaign"] = campaign
	}
	return out
}

// clientIP strips the port from RemoteAddr, which RealIP already rewrote
// from forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
