package search

import "strings"

// DefaultHost is used when the caller supplies no domain or an unrecognized
// one. Falling back instead of erroring keeps lookups working when user
// settings carry stale or free-form domain strings.
const DefaultHost = "www.amazon.com"

// marketplaceHosts is the allow-list of search hosts this service will build
// URLs against. Keys are the bare marketplace domains after normalization.
var marketplaceHosts = map[string]string{
	"amazon.com":    "www.amazon.com",
	"amazon.ca":     "www.amazon.ca",
	"amazon.co.uk":  "www.amazon.co.uk",
	"amazon.de":     "www.amazon.de",
	"amazon.fr":     "www.amazon.fr",
	"amazon.it":     "www.amazon.it",
	"amazon.es":     "www.amazon.es",
	"amazon.co.jp":  "www.amazon.co.jp",
	"amazon.com.au": "www.amazon.com.au",
}

// ResolveHost normalizes free-form domain input (scheme, www. prefix, paths,
// stray whitespace) and maps it onto the allow-list. Unknown input falls back
// to DefaultHost so we never construct a search URL against an arbitrary host.
// The second return value is the canonical bare domain.
func ResolveHost(domain string) (host, canonical string) {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}

	if h, ok := marketplaceHosts[d]; ok {
		return h, d
	}
	return DefaultHost, strings.TrimPrefix(DefaultHost, "www.")
}
