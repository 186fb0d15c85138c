// Package lookup runs the single-volume pipeline: build the search,
// fetch the result page, pick the best-matching listing and read its
// price and cover image.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/shelfmark/pricescout/internal/extract"
	"github.com/shelfmark/pricescout/internal/fetch"
	"github.com/shelfmark/pricescout/internal/match"
	"github.com/shelfmark/pricescout/internal/metrics"
	"github.com/shelfmark/pricescout/internal/price"
	"github.com/shelfmark/pricescout/internal/search"
	"github.com/shelfmark/pricescout/pkg/breaker"
)

// BreakerKey pools all marketplace hosts under one circuit. Anti-bot
// reputation is tracked per client, not per regional storefront, so a
// block on one host predicts blocks on the others.
const BreakerKey = "amazon-scrape"

const (
	cacheSize = 128
	cacheTTL  = 5 * time.Minute
)

// Fetcher retrieves one page. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Options selects which listing attributes a lookup must produce.
type Options struct {
	IncludePrice bool
	IncludeImage bool
}

// Result is one resolved listing.
type Result struct {
	SearchURL     string   `json:"searchUrl"`
	Domain        string   `json:"domain"`
	ExpectedTitle string   `json:"expectedTitle"`
	Title         string   `json:"title"`
	MatchScore    float64  `json:"matchScore"`
	Binding       string   `json:"binding"`
	PriceText     string   `json:"priceText,omitempty"`
	PriceValue    *float64 `json:"priceValue,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	ProductURL    string   `json:"productUrl,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
}

// Service ties the pipeline stages together behind the circuit breaker
// and a short-lived result cache.
type Service struct {
	breaker   *breaker.Breaker
	fetcher   Fetcher
	extractor *extract.Extractor
	cache     *expirable.LRU[string, *Result]
	logger    *slog.Logger
}

// NewService constructs a Service. A nil breaker disables circuit
// protection; a nil logger falls back to slog.Default.
func NewService(br *breaker.Breaker, f Fetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		breaker:   br,
		fetcher:   f,
		extractor: extract.New(extract.DefaultMaxCandidates),
		cache:     expirable.NewLRU[string, *Result](cacheSize, nil, cacheTTL),
		logger:    logger,
	}
}

// Lookup resolves one volume. Errors carry enough type information for
// ErrorCode to classify them.
func (s *Service) Lookup(ctx context.Context, p search.Params, opts Options) (res *Result, err error) {
	sctx, err := search.BuildContext(p)
	if err != nil {
		_, domain := search.ResolveHost(p.Domain)
		metrics.RecordLookup(domain, CodeBuildError)
		return nil, err
	}

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = ErrorCode(err)
		}
		metrics.RecordLookup(sctx.Domain, outcome)
	}()

	if cached, ok := s.cache.Get(sctx.SearchURL); ok {
		s.logger.Debug("lookup cache hit", "url", sctx.SearchURL)
		return s.finish(cached, opts)
	}

	if s.breaker != nil && s.breaker.IsBlocked(BreakerKey) {
		metrics.BreakerRejections.WithLabelValues(BreakerKey).Inc()
		return nil, &ErrCooldown{Remaining: s.breaker.RemainingCooldown(BreakerKey)}
	}

	page, err := s.fetcher.Fetch(ctx, sctx.SearchURL)
	if err != nil {
		var gate *fetch.BotGateError
		if s.breaker != nil && errors.As(err, &gate) {
			s.breaker.RecordFailure(BreakerKey)
		}
		return nil, err
	}

	candidates, err := s.extractor.Extract([]byte(page.Body))
	if err != nil {
		return nil, err
	}

	best, err := match.SelectBest(candidates, sctx)
	if err != nil {
		return nil, err
	}

	result := s.buildResult(sctx, best)
	s.cache.Add(sctx.SearchURL, result)

	s.logger.Info("lookup resolved",
		"title", sctx.Title,
		"domain", sctx.Domain,
		"matched", result.Title,
		"score", result.MatchScore,
		"price", result.PriceText)

	return s.finish(result, opts)
}

func (s *Service) buildResult(sctx *search.Context, best *match.Scored) *Result {
	c := best.Candidate
	result := &Result{
		SearchURL:     sctx.SearchURL,
		Domain:        sctx.Domain,
		ExpectedTitle: sctx.ExpectedTitle,
		Title:         c.Title,
		MatchScore:    best.MatchScore,
		Binding:       sctx.Binding,
		ProductURL:    c.ProductURL(sctx.Host),
		ImageURL:      c.ImageURL(),
	}

	if raw := c.PriceText(sctx.Binding); raw != "" {
		result.PriceText = raw
		if value, ok := price.Parse(raw, sctx.Host); ok {
			result.PriceValue = &value
			result.Currency = price.Currency(raw, sctx.Host)
		}
	}
	return result
}

// finish applies the option-dependent checks to a (possibly cached)
// result and trims attributes the caller did not ask for.
func (s *Service) finish(r *Result, opts Options) (*Result, error) {
	out := *r
	if opts.IncludePrice {
		if out.PriceText == "" {
			return nil, ErrNoPrice
		}
		if out.PriceValue == nil {
			return nil, &PriceParseError{Raw: out.PriceText}
		}
	} else {
		out.PriceText = ""
		out.PriceValue = nil
		out.Currency = ""
	}
	if !opts.IncludeImage {
		out.ImageURL = ""
	}
	return &out, nil
}
