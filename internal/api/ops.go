package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shelfmark/pricescout/internal/history"
	"github.com/shelfmark/pricescout/internal/lookup"
	"github.com/shelfmark/pricescout/internal/report"
)

const defaultFetchLimit = 100

// handleFetches lists recent outbound fetch attempts, newest first.
func (h *Handler) handleFetches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := history.Filter{
		Host:  q.Get("host"),
		Limit: defaultFetchLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, lookup.CodeBuildError,
				"limit must be a positive number", h.logger)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, lookup.CodeBuildError,
				"offset must be a non-negative number", h.logger)
			return
		}
		filter.Offset = n
	}
	if v := q.Get("botGate"); v != "" {
		gated := v == "true" || v == "1"
		filter.BotGate = &gated
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, lookup.CodeBuildError,
				"since must be an RFC 3339 timestamp", h.logger)
			return
		}
		filter.Since = &ts
	}

	recs, err := h.history.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, lookup.CodeUpstream,
			"query fetch history failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fetches": recs}, h.logger)
}

// handleOpsSummary aggregates the fetch log into a session report.
func (h *Handler) handleOpsSummary(w http.ResponseWriter, r *http.Request) {
	recs, err := h.history.Query(r.Context(), history.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, lookup.CodeUpstream,
			"query fetch history failed", h.logger)
		return
	}

	summary := report.GenerateSummary(recs)
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.WriteText(w, summary); err != nil {
			h.logger.Error("write text summary", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w, summary); err != nil {
		h.logger.Error("write json summary", "error", err)
	}
}
