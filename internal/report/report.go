// Package report aggregates the fetch log into an operator-facing summary of
// scrape health: how often we are being gated, by what, and how fast the
// upstream answers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/shelfmark/pricescout/internal/history"
)

// Summary contains aggregated metrics about a window of fetch activity.
type Summary struct {
	TotalFetches  int
	TotalErrors   int
	TotalGateHits int
	StatusCodes   map[int]int
	GateMarkers   map[string]int
	HostFetches   map[string]int
	TotalDuration time.Duration
	StartTime     time.Time
	EndTime       time.Time
	Window        time.Duration
}

// GenerateSummary folds a slice of fetch records into a Summary.
func GenerateSummary(records []*history.FetchRecord) Summary {
	s := Summary{
		StatusCodes: make(map[int]int),
		GateMarkers: make(map[string]int),
		HostFetches: make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	for _, r := range records {
		s.TotalFetches++
		if r.Error != "" {
			s.TotalErrors++
		}
		if r.BotGate {
			s.TotalGateHits++
			s.GateMarkers[r.GateMarker]++
		}
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}
		if r.Host != "" {
			s.HostFetches[r.Host]++
		}
		s.TotalDuration += r.Duration

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Window = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to w in indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const textTmpl = `Scrape Health Summary
---------------------
Time:         {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Window:       {{.Window}}
Fetches:      {{.TotalFetches}}
Errors:       {{.TotalErrors}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Bot Gate Hits: {{.TotalGateHits}}
{{- range $marker, $count := .GateMarkers}}
  {{$marker}}: {{$count}}
{{- else}}
  None
{{- end}}

Fetches by Host:
{{- range $host, $count := .HostFetches}}
  {{$host}}: {{$count}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable summary to w.
func WriteText(w io.Writer, summary Summary) error {
	tmpl, err := template.New("summary").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse summary template: %w", err)
	}
	if err := tmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
