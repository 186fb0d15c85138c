package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8899, nil)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	RecordLookup("amazon.com", "ok")
	GateDetections.WithLabelValues("amazon.com", "captcha").Inc()
	FetchDuration.WithLabelValues("amazon.com").Observe(1.2)

	resp, err := http.Get("http://localhost:8899/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	if !strings.Contains(output, `pricescout_lookups_total{domain="amazon.com",outcome="ok"}`) {
		t.Errorf("expected lookup counter for amazon.com")
	}
	if !strings.Contains(output, "pricescout_fetch_duration_seconds_bucket") {
		t.Errorf("expected fetch duration histogram")
	}
	if !strings.Contains(output, `pricescout_bot_gate_detections_total{domain="amazon.com",marker="captcha"}`) {
		t.Errorf("expected gate detection counter")
	}
}
