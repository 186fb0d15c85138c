package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfmark/pricescout/internal/extract"
	"github.com/shelfmark/pricescout/internal/fetch"
	"github.com/shelfmark/pricescout/internal/match"
	"github.com/shelfmark/pricescout/internal/search"
)

// ErrCooldown reports that the circuit breaker is open and no request
// was attempted.
type ErrCooldown struct {
	Remaining time.Duration
}

func (e *ErrCooldown) Error() string {
	return fmt.Sprintf("marketplace requests paused, retry in %s", e.Remaining.Round(time.Second))
}

// ErrNoPrice reports a matched listing that displays no price for the
// requested binding.
var ErrNoPrice = errors.New("listing shows no price for the requested binding")

// PriceParseError reports displayed price text that could not be read
// as a number.
type PriceParseError struct {
	Raw string
}

func (e *PriceParseError) Error() string {
	return fmt.Sprintf("unparseable price text %q", e.Raw)
}

// Stable error codes surfaced to API clients and batch summaries.
const (
	CodeRateLimited = "rate_limited"
	CodeBlocked     = "blocked"
	CodeTimeout     = "timeout"
	CodeParseError  = "parse_error"
	CodeBuildError  = "build_error"
	CodeNotFound    = "not_found"
	CodeUpstream    = "upstream"
)

// ErrorCode classifies any error from the lookup pipeline into one of
// the stable codes above. Unknown errors fall through to upstream.
func ErrorCode(err error) string {
	var (
		cooldown *ErrCooldown
		gate     *fetch.BotGateError
		up       *fetch.UpstreamError
		bad      *search.BadInputError
		noMatch  *match.NoMatchError
		priceErr *PriceParseError
	)

	switch {
	case errors.As(err, &cooldown):
		return CodeRateLimited
	case errors.As(err, &gate):
		return CodeBlocked
	case errors.As(err, &up):
		if up.Timeout {
			return CodeTimeout
		}
		return CodeUpstream
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.As(err, &bad):
		return CodeBuildError
	case errors.Is(err, extract.ErrNoResults), errors.As(err, &noMatch), errors.Is(err, ErrNoPrice):
		return CodeNotFound
	case errors.As(err, &priceErr):
		return CodeParseError
	default:
		return CodeUpstream
	}
}
