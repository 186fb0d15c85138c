// Package batch runs sequential multi-volume lookups with pacing
// between marketplace requests.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/pricescout/internal/lookup"
	"github.com/shelfmark/pricescout/internal/metrics"
	"github.com/shelfmark/pricescout/internal/search"
	"github.com/shelfmark/pricescout/pkg/pacer"
)

// Job limits. Batches stay small on purpose: every job is a marketplace
// page fetch, and large bursts are what trip anti-bot systems.
const (
	MinItems = 1
	MaxItems = 10
)

// Mode selects which attributes a batch resolves.
type Mode string

const (
	ModePrice Mode = "price"
	ModeImage Mode = "image"
	ModeBoth  Mode = "both"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePrice, ModeImage, ModeBoth:
		return true
	}
	return false
}

// options maps the mode onto per-lookup attribute selection.
func (m Mode) options() lookup.Options {
	return lookup.Options{
		IncludePrice: m == ModePrice || m == ModeBoth,
		IncludeImage: m == ModeImage || m == ModeBoth,
	}
}

// Status is the terminal state of one batch job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Item is one volume in a batch request.
type Item struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Volume *int   `json:"volume,omitempty"`
	Format string `json:"format,omitempty"`

	// HasPrice and HasImage describe what the caller already holds, so
	// a batch can skip volumes that need nothing.
	HasPrice bool `json:"hasPrice"`
	HasImage bool `json:"hasImage"`
}

// Request describes one batch run.
type Request struct {
	Mode    Mode   `json:"mode"`
	Binding string `json:"binding,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Items   []Item `json:"items"`

	// SkipExisting skips items that already hold every attribute the
	// mode would resolve.
	SkipExisting bool `json:"skipExisting"`
}

// BadRequestError reports a batch request that cannot run.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid batch request: %s", e.Reason)
}

// Job is the outcome of one item.
type Job struct {
	ItemID    string         `json:"itemId"`
	Title     string         `json:"title"`
	Volume    *int           `json:"volume,omitempty"`
	Status    Status         `json:"status"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Error     string         `json:"error,omitempty"`
	Result    *lookup.Result `json:"result,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Summary is the aggregate outcome of a batch run.
type Summary struct {
	BatchID   string        `json:"batchId"`
	Mode      Mode          `json:"mode"`
	Total     int           `json:"total"`
	Done      int           `json:"done"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Cancelled int           `json:"cancelled"`
	Jobs      []Job         `json:"jobs"`
	Duration  time.Duration `json:"duration"`
}

// Lookuper resolves one volume. *lookup.Service satisfies it.
type Lookuper interface {
	Lookup(ctx context.Context, p search.Params, opts lookup.Options) (*lookup.Result, error)
}

// Runner executes batches one job at a time.
type Runner struct {
	svc    Lookuper
	pacer  pacer.Pacer
	logger *slog.Logger
}

// NewRunner constructs a Runner. A nil pacer means no delay between
// jobs; a nil logger falls back to slog.Default.
func NewRunner(svc Lookuper, p pacer.Pacer, logger *slog.Logger) *Runner {
	if p == nil {
		p = pacer.None{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{svc: svc, pacer: p, logger: logger}
}

// Run executes the batch sequentially. Individual job failures do not
// stop the run; context cancellation marks every remaining job
// cancelled and returns the partial summary with the context error.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	summary := &Summary{
		BatchID: uuid.NewString(),
		Mode:    req.Mode,
		Total:   len(req.Items),
		Jobs:    make([]Job, 0, len(req.Items)),
	}
	opts := req.Mode.options()
	start := time.Now()

	r.logger.Info("batch started",
		"batch", summary.BatchID, "mode", req.Mode, "items", len(req.Items))

	for i, item := range req.Items {
		if err := ctx.Err(); err != nil {
			r.cancelRemaining(summary, req.Items[i:])
			summary.Duration = time.Since(start)
			r.logBatchDone(summary)
			return summary, err
		}

		job := r.runJob(ctx, req, item, opts)
		summary.Jobs = append(summary.Jobs, job)
		summary.count(job.Status)
		metrics.BatchJobsTotal.WithLabelValues(string(job.Status)).Inc()

		// Pace only between marketplace requests: skipped jobs touch
		// nothing, and the last job has nothing after it.
		if job.Status == StatusSkipped || i == len(req.Items)-1 {
			continue
		}
		if err := r.pacer.Wait(ctx); err != nil {
			r.cancelRemaining(summary, req.Items[i+1:])
			summary.Duration = time.Since(start)
			r.logBatchDone(summary)
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	r.logBatchDone(summary)
	return summary, nil
}

func (r *Runner) runJob(ctx context.Context, req Request, item Item, opts lookup.Options) Job {
	job := Job{ItemID: item.ID, Title: item.Title, Volume: item.Volume}

	if req.SkipExisting && satisfied(item, opts) {
		job.Status = StatusSkipped
		return job
	}

	start := time.Now()
	res, err := r.svc.Lookup(ctx, search.Params{
		Title:   item.Title,
		Volume:  item.Volume,
		Format:  item.Format,
		Binding: req.Binding,
		Domain:  req.Domain,
	}, opts)
	job.Duration = time.Since(start)

	if err != nil {
		job.Status = StatusFailed
		job.ErrorCode = lookup.ErrorCode(err)
		job.Error = err.Error()
		r.logger.Warn("batch job failed",
			"item", item.ID, "title", item.Title, "code", job.ErrorCode, "error", err)
		return job
	}

	job.Status = StatusDone
	job.Result = res
	return job
}

func (r *Runner) cancelRemaining(summary *Summary, items []Item) {
	for _, item := range items {
		summary.Jobs = append(summary.Jobs, Job{
			ItemID: item.ID,
			Title:  item.Title,
			Volume: item.Volume,
			Status: StatusCancelled,
		})
		summary.Cancelled++
		metrics.BatchJobsTotal.WithLabelValues(string(StatusCancelled)).Inc()
	}
}

func (r *Runner) logBatchDone(s *Summary) {
	r.logger.Info("batch finished",
		"batch", s.BatchID,
		"done", s.Done,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"cancelled", s.Cancelled,
		"duration", s.Duration)
}

func (s *Summary) count(st Status) {
	switch st {
	case StatusDone:
		s.Done++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusCancelled:
		s.Cancelled++
	}
}

// satisfied reports whether the item already holds everything the mode
// would resolve.
func satisfied(item Item, opts lookup.Options) bool {
	if opts.IncludePrice && !item.HasPrice {
		return false
	}
	if opts.IncludeImage && !item.HasImage {
		return false
	}
	return true
}

func validate(req Request) error {
	if !req.Mode.Valid() {
		return &BadRequestError{Reason: fmt.Sprintf("unknown mode %q", req.Mode)}
	}
	if len(req.Items) < MinItems {
		return &BadRequestError{Reason: "batch needs at least one item"}
	}
	if len(req.Items) > MaxItems {
		return &BadRequestError{Reason: fmt.Sprintf("batch holds %d items, limit is %d", len(req.Items), MaxItems)}
	}
	for i, item := range req.Items {
		if item.Title == "" {
			return &BadRequestError{Reason: fmt.Sprintf("item %d has no title", i)}
		}
	}
	return nil
}
