package fetch

import "fmt"

// UpstreamError reports a request that never produced a usable page:
// transport failures, timeouts and non-2xx statuses.
type UpstreamError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// BotGateError reports a page that came back 200-shaped but is an
// anti-automation interstitial rather than real content.
type BotGateError struct {
	URL    string
	Marker string
}

func (e *BotGateError) Error() string {
	return fmt.Sprintf("fetch %s: bot gate detected (%s)", e.URL, e.Marker)
}
