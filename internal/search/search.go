// Package search turns catalog item metadata into a marketplace search
// request plus the comparison strings later stages score candidates against.
package search

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// maxQueryLen caps the literal search query. Longer queries get truncated
// rather than rejected: the tail tokens are the least significant.
const maxQueryLen = 150

// DefaultBinding is assumed when the caller does not name a purchase format.
const DefaultBinding = "Paperback"

// Params is the caller-supplied metadata for one lookup.
type Params struct {
	Title   string
	Volume  *int
	Format  string // e.g. "Manga", "Light Novel", "Omnibus"
	Binding string // purchase option, e.g. "Paperback", "Hardcover"
	Domain  string // free-form marketplace domain, resolved via allow-list
}

// BadInputError reports metadata that cannot produce a usable query.
type BadInputError struct {
	Field  string
	Reason string
}

func (e *BadInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Context is the immutable result of building one search request.
type Context struct {
	// Domain is the canonical bare marketplace domain, Host the full
	// search host.
	Domain string
	Host   string

	Title string
	// ExpectedTitle joins every known title attribute; RequiredTitle is the
	// minimal title+volume signal a plausible match must cover.
	ExpectedTitle string
	RequiredTitle string

	Binding string
	Volume  *int

	Query     string
	SearchURL string
}

// BuildContext validates the params and derives the query string, the
// expected/required comparison titles and the search URL.
func BuildContext(p Params) (*Context, error) {
	title := collapseSpaces(p.Title)
	if title == "" {
		return nil, &BadInputError{Field: "title", Reason: "must not be empty"}
	}

	binding := collapseSpaces(p.Binding)
	if binding == "" {
		binding = DefaultBinding
	}

	var volumeToken string
	if p.Volume != nil {
		if *p.Volume < 0 {
			return nil, &BadInputError{Field: "volume", Reason: "must not be negative"}
		}
		volumeToken = fmt.Sprintf("Volume %d", *p.Volume)
	}

	format := collapseSpaces(p.Format)

	// Token order matters: title first, then the narrowing attributes. The
	// binding is a purchase-option filter, not a title attribute, so it is
	// part of the query but never of the expected title.
	query := joinTokens(title, volumeToken, format, binding)
	if len(query) > maxQueryLen {
		// Cut on a rune boundary so multibyte titles never leave a
		// mangled trailing byte in the query.
		cut := maxQueryLen
		for cut > 0 && !utf8.RuneStart(query[cut]) {
			cut--
		}
		query = strings.TrimSpace(query[:cut])
	}

	host, canonical := ResolveHost(p.Domain)

	return &Context{
		Domain:        canonical,
		Host:          host,
		Title:         title,
		ExpectedTitle: joinTokens(title, volumeToken, format),
		RequiredTitle: joinTokens(title, volumeToken),
		Binding:       binding,
		Volume:        p.Volume,
		Query:         query,
		SearchURL:     searchURL(host, query),
	}, nil
}

func searchURL(host, query string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     "/s",
		RawQuery: url.Values{"k": {query}}.Encode(),
	}
	return u.String()
}

func joinTokens(tokens ...string) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
