// Package extract parses a marketplace search results page into structured
// candidate records for matching.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxCandidates bounds how many qualifying entries are considered.
// Past the first handful the upstream's own ranking has already lost.
const DefaultMaxCandidates = 3

// ErrNoResults indicates the results container is missing or holds zero
// qualifying entries.
var ErrNoResults = errors.New("no qualifying search results")

// titleStrategies is the ordered list of selectors tried for a candidate's
// display title. Search page markup drifts; the first non-empty text wins.
var titleStrategies = []string{
	"h2 a span",
	"h2 span",
	"h2",
	"span.a-text-normal",
}

// Extractor turns raw search page HTML into candidates.
type Extractor struct {
	maxCandidates int
}

// New creates an extractor keeping at most maxCandidates entries;
// non-positive values use DefaultMaxCandidates.
func New(maxCandidates int) *Extractor {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Extractor{maxCandidates: maxCandidates}
}

// Candidate is one parsed, non-sponsored search result entry. The underlying
// selection is retained so price, image and link extraction can run against
// the selected candidate only.
type Candidate struct {
	Title string
	// OrdinalIndex is the entry's rank on the page, counted before the
	// sponsored filter so it reflects the upstream's own ordering.
	OrdinalIndex int

	sel *goquery.Selection
}

// Extract parses the page and returns the first qualifying candidates in
// page order.
func (e *Extractor) Extract(html []byte) ([]*Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	entries := doc.Find(`div[data-component-type="s-search-result"]`)
	if entries.Length() == 0 {
		entries = doc.Find("div.s-result-item")
	}
	if entries.Length() == 0 {
		return nil, ErrNoResults
	}

	var candidates []*Candidate
	entries.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(candidates) >= e.maxCandidates {
			return false
		}
		if isSponsored(s) {
			return true
		}
		title := firstText(s, titleStrategies)
		if title == "" {
			return true
		}
		candidates = append(candidates, &Candidate{
			Title:        title,
			OrdinalIndex: i,
			sel:          s,
		})
		return true
	})

	if len(candidates) == 0 {
		return nil, ErrNoResults
	}
	return candidates, nil
}

// PriceText returns the price string for the requested binding. It prefers a
// row that names the binding, falls back to the entry's lead price, and
// finally assembles whole+fraction spans for layouts without the offscreen
// price copy. Empty means no price was found.
func (c *Candidate) PriceText(binding string) string {
	bindingLower := strings.ToLower(strings.TrimSpace(binding))

	if bindingLower != "" {
		var fromRow string
		c.sel.Find("div.a-row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			if !strings.Contains(strings.ToLower(row.Text()), bindingLower) {
				return true
			}
			if p := strings.TrimSpace(row.Find("span.a-price span.a-offscreen").First().Text()); p != "" {
				fromRow = p
				return false
			}
			return true
		})
		if fromRow != "" {
			return fromRow
		}
	}

	if p := strings.TrimSpace(c.sel.Find("span.a-price span.a-offscreen").First().Text()); p != "" {
		return p
	}

	whole := strings.TrimSpace(c.sel.Find("span.a-price-whole").First().Text())
	fraction := strings.TrimSpace(c.sel.Find("span.a-price-fraction").First().Text())
	if whole == "" {
		return ""
	}
	whole = strings.TrimRight(whole, ".,")
	if fraction == "" {
		return whole
	}
	return whole + "." + fraction
}

// ImageURL returns the candidate's cover image source, if any.
func (c *Candidate) ImageURL() string {
	if src, ok := c.sel.Find("img.s-image").First().Attr("src"); ok {
		return src
	}
	src, _ := c.sel.Find("img").First().Attr("src")
	return src
}

// ProductURL returns the candidate's product link resolved against the
// search host.
func (c *Candidate) ProductURL(host string) string {
	href, ok := c.sel.Find("h2 a").First().Attr("href")
	if !ok || href == "" {
		href, _ = c.sel.Find("a.a-link-normal").First().Attr("href")
	}
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return "https://" + host + href
}

// isSponsored filters advertisement entries. Sponsored cards carry either a
// dedicated component type or a visible "Sponsored" label.
func isSponsored(s *goquery.Selection) bool {
	if ct, ok := s.Attr("data-component-type"); ok && ct == "sp-sponsored-result" {
		return true
	}
	if s.Find("span.puis-sponsored-label-text").Length() > 0 {
		return true
	}
	label := strings.TrimSpace(s.Find("a.puis-label-popover span").First().Text())
	return strings.EqualFold(label, "sponsored")
}

// firstText returns the first non-empty trimmed text produced by the ordered
// selector strategies.
func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
