package botgate

import (
	"testing"
)

func TestDetect_CleanResultsPage(t *testing.T) {
	body := []byte(`<html><div data-component-type="s-search-result"><h2>Example Series Volume 1</h2></div></html>`)
	if detected, marker := Detect(200, body, DefaultDetectors()); detected {
		t.Errorf("expected no detection, got marker %q", marker)
	}
}

func TestDetect_CaptchaPage(t *testing.T) {
	body := []byte(`<html><form action="/errors/validateCaptcha"><h4>Type the characters you see</h4></form></html>`)
	detected, marker := Detect(200, body, DefaultDetectors())
	if !detected || marker != "captcha" {
		t.Errorf("expected captcha detection, got %v %q", detected, marker)
	}
}

func TestDetect_RobotCheckIsCaseInsensitive(t *testing.T) {
	body := []byte(`<html><title>Robot Check</title></html>`)
	detected, marker := Detect(200, body, DefaultDetectors())
	if !detected || marker != "robot-check" {
		t.Errorf("expected robot-check detection, got %v %q", detected, marker)
	}
}

func TestDetect_AutomatedAccess(t *testing.T) {
	body := []byte(`<p>To discuss automated access to data please contact us.</p>`)
	detected, marker := Detect(200, body, DefaultDetectors())
	if !detected || marker != "automated-access" {
		t.Errorf("expected automated-access detection, got %v %q", detected, marker)
	}
}

func TestDetect_ChallengeStatusNeedsChallengeBody(t *testing.T) {
	// A plain 503 outage is an upstream error, not a gate.
	if detected, _ := Detect(503, []byte("<h1>Service temporarily unavailable</h1>"), DefaultDetectors()); detected {
		t.Errorf("bare 503 should not be detected as a gate")
	}

	body := []byte(`<h1>Sorry</h1><p>Please enable cookies and try again.</p>`)
	detected, marker := Detect(503, body, DefaultDetectors())
	if !detected || marker != "challenge-page" {
		t.Errorf("expected challenge-page detection, got %v %q", detected, marker)
	}
}
