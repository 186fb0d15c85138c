package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shelfmark/pricescout/internal/history"
)

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestFetch_Success(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body>results</body></html>"))
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{})

	res, err := f.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", res.StatusCode)
	}
	if res.Body == "" {
		t.Error("expected non-empty body")
	}
	if gotUA == "" {
		t.Error("expected User-Agent header to be set")
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{})

	_, err := f.Fetch(context.Background(), ts.URL)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UpstreamError, got %T (%v)", err, err)
	}
	if uerr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500 on error, got %d", uerr.StatusCode)
	}
}

func TestFetch_BotGatePage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Type the characters you see in this CAPTCHA image</body></html>"))
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{})

	_, err := f.Fetch(context.Background(), ts.URL)
	var gerr *BotGateError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *BotGateError, got %T (%v)", err, err)
	}
	if gerr.Marker != "captcha" {
		t.Errorf("expected captcha marker, got %q", gerr.Marker)
	}
}

func TestFetch_ChallengeStatusIsGateNotUpstream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("To discuss automated access to data please contact us. Enable cookies and try again."))
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{})

	_, err := f.Fetch(context.Background(), ts.URL)
	var gerr *BotGateError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *BotGateError for 503 challenge page, got %T (%v)", err, err)
	}
}

func TestFetch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{Timeout: 50 * time.Millisecond})

	_, err := f.Fetch(context.Background(), ts.URL)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UpstreamError, got %T (%v)", err, err)
	}
	if !uerr.Timeout {
		t.Error("expected Timeout to be set")
	}
}

func TestFetch_RecordsHistory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Sorry, we just need to make sure you're not a robot.</body></html>"))
	}))
	defer ts.Close()

	backend := history.NewMemory(10)
	f := newTestFetcher(t, Config{History: backend})

	_, err := f.Fetch(context.Background(), ts.URL)
	if err == nil {
		t.Fatal("expected error")
	}

	recs, err := backend.Query(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("query history: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	rec := recs[0]
	if !rec.BotGate {
		t.Error("expected BotGate to be set")
	}
	if rec.GateMarker == "" {
		t.Error("expected a gate marker")
	}
	if rec.ID == "" {
		t.Error("expected a record ID")
	}
	if rec.StatusCode != http.StatusOK {
		t.Errorf("expected recorded status 200, got %d", rec.StatusCode)
	}
}

func TestFetch_FollowsRedirectsUpToMax(t *testing.T) {
	hops := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/final" {
			hops++
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.Write([]byte("<html><body>results</body></html>"))
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{MaxRedirects: 3})

	res, err := f.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after redirect, got %d", res.StatusCode)
	}
	if hops != 1 {
		t.Errorf("expected one redirect hop, got %d", hops)
	}
}

func TestFetch_RedirectLoopStops(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{MaxRedirects: 2})

	_, err := f.Fetch(context.Background(), ts.URL)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UpstreamError for redirect loop, got %T (%v)", err, err)
	}
}

func TestFetch_NegativeMaxDisablesRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer ts.Close()

	f := newTestFetcher(t, Config{MaxRedirects: -1})

	_, err := f.Fetch(context.Background(), ts.URL)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UpstreamError, got %T (%v)", err, err)
	}
	if uerr.StatusCode != http.StatusFound {
		t.Errorf("expected the raw 302 surfaced, got %d", uerr.StatusCode)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	f := newTestFetcher(t, Config{})

	_, err := f.Fetch(context.Background(), "http://\x7f")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UpstreamError, got %T (%v)", err, err)
	}
}
