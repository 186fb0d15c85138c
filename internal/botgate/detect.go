package botgate

import (
	"net/http"
	"strings"
)

// Detector examines a response to decide whether the upstream served an
// anti-automation interstitial instead of real results. It returns the
// marker that triggered so callers can log and aggregate by vendor/page type.
type Detector func(statusCode int, body string) (detected bool, marker string)

// DefaultDetectors returns the standard detector chain, ordered from the
// cheapest check to the broadest.
func DefaultDetectors() []Detector {
	return []Detector{
		detectChallengeStatus,
		detectCaptchaPage,
		detectRobotCheck,
		detectAutomatedAccess,
	}
}

// Detect runs the body through the detector chain and reports the first hit.
// Detection is a heuristic: markup changes upstream can produce both false
// negatives and, rarely, false positives on legitimate pages quoting the
// marker text.
func Detect(statusCode int, body []byte, detectors []Detector) (bool, string) {
	lower := strings.ToLower(string(body))
	for _, d := range detectors {
		if detected, marker := d(statusCode, lower); detected {
			return true, marker
		}
	}
	return false, ""
}

// detectChallengeStatus flags challenge-typical status codes that also carry
// a verification body. A plain 503 without challenge text stays an upstream
// error, not a gate.
func detectChallengeStatus(statusCode int, body string) (bool, string) {
	if statusCode != http.StatusServiceUnavailable && statusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(body, "enable cookies") || strings.Contains(body, "verify you are a human") {
		return true, "challenge-page"
	}
	return false, ""
}

// detectCaptchaPage looks for CAPTCHA form markers.
func detectCaptchaPage(_ int, body string) (bool, string) {
	if strings.Contains(body, "captcha") {
		return true, "captcha"
	}
	return false, ""
}

// detectRobotCheck looks for the classic "Robot Check" interstitial title.
func detectRobotCheck(_ int, body string) (bool, string) {
	if strings.Contains(body, "robot check") || strings.Contains(body, "not a robot") {
		return true, "robot-check"
	}
	return false, ""
}

// detectAutomatedAccess looks for the automated-traffic apology page.
func detectAutomatedAccess(_ int, body string) (bool, string) {
	if strings.Contains(body, "automated access") || strings.Contains(body, "unusual traffic") {
		return true, "automated-access"
	}
	return false, ""
}
