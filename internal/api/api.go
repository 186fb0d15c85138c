// Package api exposes the lookup pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shelfmark/pricescout/internal/batch"
	"github.com/shelfmark/pricescout/internal/history"
	"github.com/shelfmark/pricescout/internal/lookup"
	"github.com/shelfmark/pricescout/internal/search"
)

const maxBatchBody = 64 << 10

// ItemSource resolves item IDs to volume metadata. The catalog itself
// lives outside this service.
type ItemSource interface {
	Items(ctx context.Context, ids []string) ([]batch.Item, error)
}

// Lookuper resolves one volume. *lookup.Service satisfies it.
type Lookuper interface {
	Lookup(ctx context.Context, p search.Params, opts lookup.Options) (*lookup.Result, error)
}

// BatchRunner executes one batch request. *batch.Runner satisfies it.
type BatchRunner interface {
	Run(ctx context.Context, req batch.Request) (*batch.Summary, error)
}

// Handler serves the v1 HTTP surface.
type Handler struct {
	lookups Lookuper
	batches BatchRunner
	items   ItemSource
	history history.Backend
	logger  *slog.Logger
}

// New constructs a Handler. A nil logger falls back to slog.Default.
func New(l Lookuper, b BatchRunner, items ItemSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{lookups: l, batches: b, items: items, logger: logger}
}

// WithHistory enables the ops endpoints backed by the fetch log.
func (h *Handler) WithHistory(hist history.Backend) *Handler {
	h.history = hist
	return h
}

// Router returns the route table.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/lookup", h.handleLookup)
	mux.HandleFunc("POST /v1/batch", h.handleBatch)
	mux.HandleFunc("GET /health", h.handleHealth)
	if h.history != nil {
		mux.HandleFunc("GET /v1/ops/fetches", h.handleFetches)
		mux.HandleFunc("GET /v1/ops/summary", h.handleOpsSummary)
	}
	return mux
}

// lookupResponse is the success envelope for GET /v1/lookup.
type lookupResponse struct {
	SearchURL     string       `json:"searchUrl"`
	Domain        string       `json:"domain"`
	ExpectedTitle string       `json:"expectedTitle"`
	MatchScore    float64      `json:"matchScore"`
	Binding       string       `json:"binding"`
	Result        lookupResult `json:"result"`
}

type lookupResult struct {
	Title      string   `json:"title"`
	PriceText  string   `json:"priceText,omitempty"`
	PriceValue *float64 `json:"priceValue,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	URL        string   `json:"url,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty"`
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := search.Params{
		Title:   q.Get("title"),
		Format:  q.Get("format"),
		Binding: q.Get("binding"),
		Domain:  q.Get("domain"),
	}
	if v := q.Get("volume"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, lookup.CodeBuildError,
				fmt.Sprintf("volume %q is not a number", v), h.logger)
			return
		}
		params.Volume = &n
	}

	opts := lookup.Options{IncludePrice: true}
	if v := q.Get("includePrice"); v != "" {
		opts.IncludePrice = v == "true" || v == "1"
	}
	if v := q.Get("includeImage"); v != "" {
		opts.IncludeImage = v == "true" || v == "1"
	}
	if !opts.IncludePrice && !opts.IncludeImage {
		writeError(w, http.StatusBadRequest, lookup.CodeBuildError,
			"at least one of includePrice and includeImage must be set", h.logger)
		return
	}

	res, err := h.lookups.Lookup(r.Context(), params, opts)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lookupResponse{
		SearchURL:     res.SearchURL,
		Domain:        res.Domain,
		ExpectedTitle: res.ExpectedTitle,
		MatchScore:    res.MatchScore,
		Binding:       res.Binding,
		Result: lookupResult{
			Title:      res.Title,
			PriceText:  res.PriceText,
			PriceValue: res.PriceValue,
			Currency:   res.Currency,
			URL:        res.ProductURL,
			ImageURL:   res.ImageURL,
		},
	}, h.logger)
}

// batchRequest is the POST /v1/batch body.
type batchRequest struct {
	ItemIDs      []string `json:"itemIds"`
	Mode         string   `json:"mode"`
	SkipExisting bool     `json:"skipExisting"`
	Domain       string   `json:"domain,omitempty"`
	Binding      string   `json:"binding,omitempty"`
}

type batchResponse struct {
	BatchID string        `json:"batchId"`
	Results []batchResult `json:"results"`
	Summary batchSummary  `json:"summary"`
}

type batchResult struct {
	ItemID       string   `json:"itemId"`
	Status       string   `json:"status"`
	PriceValue   *float64 `json:"priceValue,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	ErrorCode    string   `json:"errorCode,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

type batchSummary struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBatchBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, lookup.CodeBuildError,
			fmt.Sprintf("decode request: %v", err), h.logger)
		return
	}

	if len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, lookup.CodeBuildError,
			"itemIds must not be empty", h.logger)
		return
	}

	items, err := h.items.Items(r.Context(), req.ItemIDs)
	if err != nil {
		writeError(w, http.StatusBadGateway, lookup.CodeUpstream,
			fmt.Sprintf("resolve items: %v", err), h.logger)
		return
	}

	summary, err := h.batches.Run(r.Context(), batch.Request{
		Mode:         batch.Mode(req.Mode),
		Binding:      req.Binding,
		Domain:       req.Domain,
		Items:        items,
		SkipExisting: req.SkipExisting,
	})
	if err != nil {
		var berr *batch.BadRequestError
		switch {
		case errors.As(err, &berr):
			writeError(w, http.StatusBadRequest, lookup.CodeBuildError, berr.Reason, h.logger)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Partial summary still goes out so the caller sees which
			// jobs finished before the cut-off.
			writeJSON(w, http.StatusOK, toBatchResponse(summary), h.logger)
		default:
			writeError(w, http.StatusBadGateway, lookup.CodeUpstream, err.Error(), h.logger)
		}
		return
	}

	writeJSON(w, http.StatusOK, toBatchResponse(summary), h.logger)
}

func toBatchResponse(s *batch.Summary) batchResponse {
	resp := batchResponse{
		BatchID: s.BatchID,
		Results: make([]batchResult, 0, len(s.Jobs)),
		Summary: batchSummary{
			Total:     s.Total,
			Done:      s.Done,
			Failed:    s.Failed,
			Skipped:   s.Skipped,
			Cancelled: s.Cancelled,
		},
	}
	for _, job := range s.Jobs {
		br := batchResult{
			ItemID:       job.ItemID,
			Status:       string(job.Status),
			ErrorCode:    job.ErrorCode,
			ErrorMessage: job.Error,
		}
		if job.Result != nil {
			br.PriceValue = job.Result.PriceValue
			br.Currency = job.Result.Currency
			br.ImageURL = job.Result.ImageURL
		}
		resp.Results = append(resp.Results, br)
	}
	return resp
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// writeLookupError maps pipeline error codes onto HTTP statuses. A
// cooldown additionally tells the caller when to retry.
func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	code := lookup.ErrorCode(err)

	var cooldown *lookup.ErrCooldown
	if errors.As(err, &cooldown) {
		body := errorBody{
			Status:       http.StatusTooManyRequests,
			Message:      err.Error(),
			Code:         code,
			RetryAfterMs: cooldown.Remaining.Milliseconds(),
		}
		w.Header().Set("Retry-After", strconv.FormatInt(int64(cooldown.Remaining/time.Second)+1, 10))
		writeJSON(w, http.StatusTooManyRequests, body, h.logger)
		return
	}

	writeError(w, statusFor(code), code, err.Error(), h.logger)
}

func statusFor(code string) int {
	switch code {
	case lookup.CodeBuildError:
		return http.StatusBadRequest
	case lookup.CodeNotFound:
		return http.StatusNotFound
	case lookup.CodeRateLimited:
		return http.StatusTooManyRequests
	case lookup.CodeBlocked:
		return http.StatusServiceUnavailable
	case lookup.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
