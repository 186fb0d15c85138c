// Package fetch retrieves marketplace pages with browser-like request
// headers and screens the responses for anti-automation interstitials.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shelfmark/pricescout/internal/botgate"
	"github.com/shelfmark/pricescout/internal/fingerprint"
	"github.com/shelfmark/pricescout/internal/history"
	"github.com/shelfmark/pricescout/internal/metrics"
	"github.com/shelfmark/pricescout/pkg/useragent"
)

const (
	// DefaultTimeout bounds a single page fetch end to end.
	DefaultTimeout = 12 * time.Second

	// DefaultMaxRedirects covers locale and canonical-URL hops on search
	// pages without letting a redirect loop burn the timeout.
	DefaultMaxRedirects = 3

	// maxBodySize caps how much of a result page we read. Search pages
	// are well under this; anything larger is not worth parsing.
	maxBodySize = 2 << 20
)

// Config defines the setup for a Fetcher. Zero values get sensible
// defaults except Logger, which falls back to slog.Default.
type Config struct {
	Timeout time.Duration

	// MaxRedirects caps redirect hops; zero means DefaultMaxRedirects,
	// negative disables following redirects entirely.
	MaxRedirects int

	// UserAgents supplies the User-Agent rotation. Nil means the
	// built-in desktop pool.
	UserAgents *useragent.Pool

	// Fingerprint selects the TLS ClientHello profile. Empty keeps the
	// standard library handshake.
	Fingerprint fingerprint.Profile

	// Limiter, when set, paces outbound requests before dialing.
	Limiter *rate.Limiter

	// History, when set, receives one record per fetch attempt.
	History history.Backend

	// Detectors screen response bodies for interstitials. Nil means
	// botgate.DefaultDetectors.
	Detectors []botgate.Detector

	Logger *slog.Logger
}

// Result is a successfully fetched page.
type Result struct {
	URL        string
	StatusCode int
	Body       string
	Duration   time.Duration
}

// Fetcher retrieves pages on behalf of the lookup pipeline.
type Fetcher struct {
	client    *http.Client
	agents    *useragent.Pool
	limiter   *rate.Limiter
	hist      history.Backend
	detectors []botgate.Detector
	logger    *slog.Logger
}

// New constructs a Fetcher from the configuration.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(nil)
	}
	if cfg.Detectors == nil {
		cfg.Detectors = botgate.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("configure fingerprint: %w", err)
	}
	client, err := newClient(cfg, transport)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		client:    client,
		agents:    cfg.UserAgents,
		limiter:   cfg.Limiter,
		hist:      cfg.History,
		detectors: cfg.Detectors,
		logger:    cfg.Logger,
	}, nil
}

// newClient assembles the http.Client the fetcher needs: a hard overall
// timeout, a cookie jar (marketplaces set session cookies before serving
// real results) and a bounded redirect policy.
func newClient(cfg Config, transport http.RoundTripper) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	maxRedirects := cfg.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	if maxRedirects < 0 {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       cfg.Timeout,
		Jar:           jar,
		Transport:     transport,
		CheckRedirect: checkRedirect,
	}, nil
}

// Fetch retrieves the page at url. It returns a *BotGateError when the
// body trips a detector and a *UpstreamError for transport and status
// failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	f.setHeaders(req)

	rec := history.FetchRecord{
		ID:        uuid.NewString(),
		URL:       url,
		Host:      req.URL.Host,
		CreatedAt: time.Now(),
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	rec.Duration = time.Since(start)

	if err != nil {
		ferr := &UpstreamError{URL: url, Timeout: isTimeout(err), Err: err}
		rec.Error = err.Error()
		f.record(ctx, rec)
		f.logger.Warn("fetch failed", "url", url, "timeout", ferr.Timeout, "error", err)
		return nil, ferr
	}
	defer resp.Body.Close()

	rec.StatusCode = resp.StatusCode
	metrics.FetchDuration.WithLabelValues(req.URL.Host).Observe(rec.Duration.Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		ferr := &UpstreamError{URL: url, Timeout: isTimeout(err), Err: err}
		rec.Error = err.Error()
		f.record(ctx, rec)
		return nil, ferr
	}
	page := string(body)

	if gated, marker := botgate.Detect(resp.StatusCode, body, f.detectors); gated {
		rec.BotGate = true
		rec.GateMarker = marker
		f.record(ctx, rec)
		metrics.GateDetections.WithLabelValues(req.URL.Host, marker).Inc()
		f.logger.Warn("bot gate detected", "url", url, "marker", marker, "status", resp.StatusCode)
		return nil, &BotGateError{URL: url, Marker: marker}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rec.Error = fmt.Sprintf("status %d", resp.StatusCode)
		f.record(ctx, rec)
		return nil, &UpstreamError{URL: url, StatusCode: resp.StatusCode}
	}

	f.record(ctx, rec)
	f.logger.Debug("fetched page", "url", url, "status", resp.StatusCode, "bytes", len(page), "duration", rec.Duration)

	return &Result{
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       page,
		Duration:   rec.Duration,
	}, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.agents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// record persists the attempt even when the caller's context has been
// cancelled mid-fetch.
func (f *Fetcher) record(ctx context.Context, rec history.FetchRecord) {
	if f.hist == nil {
		return
	}
	if err := f.hist.Record(context.WithoutCancel(ctx), &rec); err != nil {
		f.logger.Error("record fetch history", "url", rec.URL, "error", err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
