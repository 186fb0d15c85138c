package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shelfmark/pricescout/internal/batch"
	"github.com/shelfmark/pricescout/internal/fetch"
	"github.com/shelfmark/pricescout/internal/lookup"
	"github.com/shelfmark/pricescout/internal/search"
)

type stubLookuper struct {
	res *lookup.Result
	err error
}

func (s *stubLookuper) Lookup(ctx context.Context, p search.Params, o lookup.Options) (*lookup.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type stubItems struct {
	items map[string]batch.Item
	err   error
}

func (s *stubItems) Items(ctx context.Context, ids []string) ([]batch.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]batch.Item, 0, len(ids))
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok {
			return nil, fmt.Errorf("unknown item %q", id)
		}
		out = append(out, item)
	}
	return out, nil
}

func newTestHandler(l Lookuper) *Handler {
	logger := slog.New(slog.DiscardHandler)
	runner := batch.NewRunner(l, nil, logger)
	items := &stubItems{items: map[string]batch.Item{
		"1": {ID: "1", Title: "Example Series", HasPrice: true},
		"2": {ID: "2", Title: "Other Series"},
	}}
	return New(l, runner, items, logger)
}

func doRequest(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleLookup_Success(t *testing.T) {
	value := 12.99
	h := newTestHandler(&stubLookuper{res: &lookup.Result{
		SearchURL:     "https://www.amazon.com/s?k=example",
		Domain:        "amazon.com",
		ExpectedTitle: "Example Series Volume 5 Manga",
		MatchScore:    0.92,
		Binding:       "Paperback",
		Title:         "Example Series Volume 5",
		PriceText:     "$12.99",
		PriceValue:    &value,
		Currency:      "USD",
		ProductURL:    "https://www.amazon.com/dp/B000EXAMPLE",
		ImageURL:      "https://images.example.test/cover.jpg",
	}})

	rec := doRequest(t, h, http.MethodGet, "/v1/lookup?title=Example+Series&volume=5&includeImage=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp lookupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Domain != "amazon.com" {
		t.Errorf("unexpected domain %q", resp.Domain)
	}
	if resp.Result.PriceValue == nil || *resp.Result.PriceValue != 12.99 {
		t.Errorf("unexpected price value %v", resp.Result.PriceValue)
	}
	if resp.Result.URL == "" || resp.Result.ImageURL == "" {
		t.Errorf("expected product and image URLs, got %+v", resp.Result)
	}
}

func TestHandleLookup_BadVolume(t *testing.T) {
	h := newTestHandler(&stubLookuper{})

	rec := doRequest(t, h, http.MethodGet, "/v1/lookup?title=X&volume=five", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != lookup.CodeBuildError {
		t.Errorf("expected build_error, got %q", body.Code)
	}
}

func TestHandleLookup_NoAttributesRequested(t *testing.T) {
	h := newTestHandler(&stubLookuper{})

	rec := doRequest(t, h, http.MethodGet, "/v1/lookup?title=X&includePrice=false&includeImage=false", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleLookup_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"bad input", &search.BadInputError{Field: "title", Reason: "empty"}, http.StatusBadRequest, lookup.CodeBuildError},
		{"no match", lookup.ErrNoPrice, http.StatusNotFound, lookup.CodeNotFound},
		{"blocked", &fetch.BotGateError{URL: "x", Marker: "captcha"}, http.StatusServiceUnavailable, lookup.CodeBlocked},
		{"timeout", &fetch.UpstreamError{URL: "x", Timeout: true}, http.StatusGatewayTimeout, lookup.CodeTimeout},
		{"upstream", &fetch.UpstreamError{URL: "x", StatusCode: 500}, http.StatusBadGateway, lookup.CodeUpstream},
		{"parse", &lookup.PriceParseError{Raw: "N/A"}, http.StatusBadGateway, lookup.CodeParseError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&stubLookuper{err: tc.err})
			rec := doRequest(t, h, http.MethodGet, "/v1/lookup?title=X", "")
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Code != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, body.Code)
			}
		})
	}
}

func TestHandleLookup_CooldownCarriesRetryAfter(t *testing.T) {
	h := newTestHandler(&stubLookuper{err: &lookup.ErrCooldown{Remaining: 90 * time.Second}})

	rec := doRequest(t, h, http.MethodGet, "/v1/lookup?title=X", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != lookup.CodeRateLimited {
		t.Errorf("expected rate_limited, got %q", body.Code)
	}
	if body.RetryAfterMs != 90_000 {
		t.Errorf("expected retryAfterMs 90000, got %d", body.RetryAfterMs)
	}
}

func TestHandleBatch_Success(t *testing.T) {
	value := 9.99
	h := newTestHandler(&stubLookuper{res: &lookup.Result{
		Title:      "Example Series",
		PriceText:  "$9.99",
		PriceValue: &value,
		Currency:   "USD",
		ImageURL:   "https://images.example.test/cover.jpg",
	}})

	rec := doRequest(t, h, http.MethodPost, "/v1/batch",
		`{"itemIds":["1","2"],"mode":"both"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Total != 2 || resp.Summary.Done != 2 {
		t.Errorf("unexpected summary %+v", resp.Summary)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].PriceValue == nil {
		t.Error("expected price value on first result")
	}
	if resp.BatchID == "" {
		t.Error("expected a batch ID")
	}
}

func TestHandleBatch_SkipExisting(t *testing.T) {
	h := newTestHandler(&stubLookuper{res: &lookup.Result{Title: "X", PriceText: "$1"}})

	rec := doRequest(t, h, http.MethodPost, "/v1/batch",
		`{"itemIds":["1","2"],"mode":"price","skipExisting":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Skipped != 1 || resp.Summary.Done != 1 {
		t.Errorf("expected 1 skipped / 1 done, got %+v", resp.Summary)
	}
	if resp.Results[0].Status != string(batch.StatusSkipped) {
		t.Errorf("expected first item skipped, got %q", resp.Results[0].Status)
	}
}

func TestHandleBatch_Validation(t *testing.T) {
	h := newTestHandler(&stubLookuper{})

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"itemIds":`},
		{"no items", `{"itemIds":[],"mode":"price"}`},
		{"bad mode", `{"itemIds":["1"],"mode":"everything"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/v1/batch", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestHandleBatch_UnknownItem(t *testing.T) {
	h := newTestHandler(&stubLookuper{})

	rec := doRequest(t, h, http.MethodPost, "/v1/batch",
		`{"itemIds":["missing"],"mode":"price"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(&stubLookuper{})

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
