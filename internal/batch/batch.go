// Package batch resolves many companies concurrently and hands each
// outcome to the downstream sinks: positions extraction, the positions
// CSV files, the resolution log and the event stream.
package batch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/careers-finder/internal/db"
	"github.com/jonathan/careers-finder/internal/events"
	"github.com/jonathan/careers-finder/internal/positions"
	"github.com/jonathan/careers-finder/internal/resolver"
	"github.com/jonathan/careers-finder/internal/trace"
)

// DefaultConcurrency bounds in-flight companies.
const DefaultConcurrency = 20

// DefaultSinkTimeout bounds each resolution log insert and event publish.
const DefaultSinkTimeout = 10 * time.Second

// Resolver resolves one company.
type Resolver interface {
	Resolve(ctx context.Context, name string) (resolver.Resolution, error)
}

// PositionExtractor reads open positions from an accepted careers page.
type PositionExtractor interface {
	Extract(ctx context.Context, company, url string) ([]positions.Position, error)
}

// PositionWriter persists a company's positions.
type PositionWriter interface {
	Exists(company string) bool
	Write(company string, list []positions.Position) (path string, written bool, err error)
}

// ResolutionRecorder stores resolution outcomes.
type ResolutionRecorder interface {
	RecordResolution(ctx context.Context, r *db.Resolution) error
}

// ProgressEvent reports a finished company.
type ProgressEvent struct {
	Company string          `json:"company"`
	Status  resolver.Status `json:"status,omitempty"`
	Skipped bool            `json:"skipped,omitempty"`
	Done    int             `json:"done"`
	Total   int             `json:"total"`
}

// ProgressCallback is called once per company, from worker goroutines.
type ProgressCallback func(event ProgressEvent)

// Options wires the optional stages. Nil stages are skipped.
type Options struct {
	Concurrency int
	// SinkTimeout bounds each Recorder and Publisher call.
	SinkTimeout time.Duration
	// SkipExisting skips companies whose positions file already exists,
	// before any paid call is made.
	SkipExisting bool
	Extractor    PositionExtractor
	Writer       PositionWriter
	Recorder     ResolutionRecorder
	Publisher    events.Publisher
	OnProgress   ProgressCallback
}

// Outcome is everything produced for one company.
type Outcome struct {
	Resolution    resolver.Resolution
	Err           error
	Skipped       bool
	Positions     []positions.Position
	PositionsFile string
	PositionsErr  error
}

// Report collects a batch run, keyed by company name.
type Report struct {
	RunID    uuid.UUID
	Outcomes map[string]Outcome
	Started  time.Time
	Finished time.Time
}

// Summary counts outcomes by kind.
type Summary struct {
	Found       int
	NotRelevant int
	Failed      int
	Skipped     int
	Positions   int
}

// Summary tallies the report.
func (r *Report) Summary() Summary {
	var s Summary
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			s.Skipped++
		case o.Resolution.Status == resolver.StatusFound:
			s.Found++
		case o.Resolution.Status == resolver.StatusNotRelevant:
			s.NotRelevant++
		default:
			s.Failed++
		}
		s.Positions += len(o.Positions)
	}
	return s
}

// Runner processes company lists.
type Runner struct {
	resolver Resolver
	opts     Options
}

// NewRunner creates a Runner.
func NewRunner(r Resolver, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = DefaultSinkTimeout
	}
	return &Runner{resolver: r, opts: opts}
}

// Run processes companies with bounded concurrency. Duplicate and blank
// names are dropped. A company's failure is recorded in its Outcome and
// never stops the batch; the only error returned is ctx's, in which case
// the report holds the companies finished so far.
func (r *Runner) Run(ctx context.Context, companies []string) (*Report, error) {
	runID := trace.RunID(ctx)
	if runID == uuid.Nil {
		runID = uuid.New()
		ctx = trace.WithRunID(ctx, runID)
	}
	names := Dedupe(companies)
	report := &Report{
		RunID:    runID,
		Outcomes: make(map[string]Outcome, len(names)),
		Started:  time.Now(),
	}
	logger := trace.Logger(ctx)
	logger.Info("starting batch", "companies", len(names), "concurrency", r.opts.Concurrency)

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(r.opts.Concurrency)

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := r.process(trace.WithCompany(ctx, name), runID, name)

			mu.Lock()
			report.Outcomes[name] = out
			done++
			event := ProgressEvent{
				Company: name,
				Status:  out.Resolution.Status,
				Skipped: out.Skipped,
				Done:    done,
				Total:   len(names),
			}
			mu.Unlock()

			if r.opts.OnProgress != nil {
				r.opts.OnProgress(event)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = time.Now()
	s := report.Summary()
	logger.Info("batch finished",
		"found", s.Found, "not_relevant", s.NotRelevant, "failed", s.Failed,
		"skipped", s.Skipped, "positions", s.Positions,
		"duration", report.Finished.Sub(report.Started))
	return report, ctx.Err()
}

func (r *Runner) process(ctx context.Context, runID uuid.UUID, name string) Outcome {
	logger := trace.Logger(ctx)

	if r.opts.SkipExisting && r.opts.Writer != nil && r.opts.Writer.Exists(name) {
		logger.Info("open positions were already extracted, skipping")
		return Outcome{Skipped: true, Resolution: resolver.Resolution{Company: name}}
	}

	logger.Info("processing company")
	res, err := r.resolver.Resolve(ctx, name)
	out := Outcome{Resolution: res, Err: err}

	if err == nil && res.Found() && r.opts.Extractor != nil {
		list, perr := r.opts.Extractor.Extract(ctx, name, res.URL)
		if perr != nil {
			logger.Warn("failed to extract open positions", "url", res.URL, "error", perr)
			out.PositionsErr = perr
		} else {
			out.Positions = list
			logger.Info("extracted open positions", "count", len(list))
			if r.opts.Writer != nil {
				path, written, werr := r.opts.Writer.Write(name, list)
				switch {
				case werr != nil:
					logger.Error("failed to persist open positions", "error", werr)
					out.PositionsErr = werr
				case written:
					out.PositionsFile = path
				default:
					logger.Info("positions file already exists, left untouched", "path", path)
				}
			}
		}
	}

	if r.opts.Recorder != nil {
		if rerr := r.record(ctx, toRow(runID, out)); rerr != nil {
			logger.Warn("failed to record resolution", "error", rerr)
		}
	}
	if r.opts.Publisher != nil {
		if perr := r.publish(ctx, events.NewResolved(runID, res, len(out.Positions), err)); perr != nil {
			logger.Warn("failed to publish resolution", "error", perr)
		}
	}
	return out
}

func (r *Runner) record(ctx context.Context, row *db.Resolution) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.SinkTimeout)
	defer cancel()
	return r.opts.Recorder.RecordResolution(ctx, row)
}

func (r *Runner) publish(ctx context.Context, msg events.Resolved) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.SinkTimeout)
	defer cancel()
	return r.opts.Publisher.Publish(ctx, msg)
}

func toRow(runID uuid.UUID, out Outcome) *db.Resolution {
	res := out.Resolution
	row := &db.Resolution{
		RunID:      runID,
		Company:    res.Company,
		Status:     string(res.Status),
		URL:        res.URL,
		Similarity: res.Score,
		Method:     string(res.Method),
		Keywords:   res.Keywords,
		DurationMs: res.Duration.Milliseconds(),
	}
	if out.Err != nil {
		row.ErrorMessage = out.Err.Error()
	}
	return row
}

// Dedupe trims names and drops blanks and repeats, keeping first-seen
// order.
func Dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
