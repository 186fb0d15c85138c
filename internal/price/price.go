// Package price converts locale-formatted marketplace price strings into
// numeric values and currency codes.
package price

import (
	"strconv"
	"strings"
)

// commaDecimalHosts lists marketplaces whose locale writes decimals with a
// comma ("12,50 €"). Everything else on the allow-list is dot-decimal.
var commaDecimalHosts = map[string]bool{
	"amazon.de": true,
	"amazon.fr": true,
	"amazon.it": true,
	"amazon.es": true,
}

var dotDecimalHosts = map[string]bool{
	"amazon.com":    true,
	"amazon.ca":     true,
	"amazon.co.uk":  true,
	"amazon.co.jp":  true,
	"amazon.com.au": true,
}

// hostCurrency maps a marketplace to its currency when the raw text carries
// no recognizable symbol.
var hostCurrency = map[string]string{
	"amazon.com":    "USD",
	"amazon.ca":     "CAD",
	"amazon.co.uk":  "GBP",
	"amazon.de":     "EUR",
	"amazon.fr":     "EUR",
	"amazon.it":     "EUR",
	"amazon.es":     "EUR",
	"amazon.co.jp":  "JPY",
	"amazon.com.au": "AUD",
}

// Parse extracts a numeric price from raw text like "$12.50", "12,50 €" or
// "1.234,56". The host decides how a lone separator is read. The second
// return value is false when no digits survive filtering or the number does
// not parse.
func Parse(raw, host string) (float64, bool) {
	host = normalizeHost(host)

	filtered := filterNumeric(raw)
	if filtered == "" || !strings.ContainsAny(filtered, "0123456789") {
		return 0, false
	}

	lastDot := strings.LastIndexByte(filtered, '.')
	lastComma := strings.LastIndexByte(filtered, ',')

	var decimalIdx int
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: whichever occurs last is the decimal separator.
		decimalIdx = lastDot
		if lastComma > lastDot {
			decimalIdx = lastComma
		}
	case lastComma >= 0:
		decimalIdx = loneSeparator(filtered, lastComma, commaDecimalHosts[host])
	case lastDot >= 0:
		decimalIdx = loneSeparator(filtered, lastDot, dotDecimalHosts[host])
	default:
		decimalIdx = -1
	}

	normalized := normalizeNumber(filtered, decimalIdx)
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Currency detects a currency code, symbol-based first and by host table when
// the text carries no symbol. Returns "" when neither yields an answer.
func Currency(raw, host string) string {
	// CA$/C$ must win over the plain dollar sign.
	switch {
	case strings.Contains(raw, "CA$") || strings.Contains(raw, "C$"):
		return "CAD"
	case strings.Contains(raw, "$"):
		return "USD"
	case strings.Contains(raw, "£"):
		return "GBP"
	case strings.Contains(raw, "€"):
		return "EUR"
	case strings.Contains(raw, "¥"):
		return "JPY"
	}
	return hostCurrency[normalizeHost(host)]
}

// loneSeparator decides whether a single separator kind is the decimal point.
// It is when the host's locale says so, or when exactly 1-2 digits follow the
// last occurrence. Ambiguous input is treated as having no decimal separator
// rather than guessing wrong.
func loneSeparator(filtered string, lastIdx int, localeDecimal bool) int {
	if localeDecimal {
		return lastIdx
	}
	trailing := len(filtered) - lastIdx - 1
	if trailing >= 1 && trailing <= 2 {
		return lastIdx
	}
	return -1
}

// normalizeNumber strips every separator except the chosen decimal one, which
// becomes a dot. decimalIdx < 0 strips all punctuation.
func normalizeNumber(filtered string, decimalIdx int) string {
	var b strings.Builder
	b.Grow(len(filtered))
	for i := 0; i < len(filtered); i++ {
		c := filtered[i]
		if c >= '0' && c <= '9' {
			b.WriteByte(c)
			continue
		}
		if i == decimalIdx {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// filterNumeric keeps digits, dots and commas only.
func filterNumeric(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}
