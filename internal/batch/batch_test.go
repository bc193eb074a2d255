package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/careers-finder/internal/db"
	"github.com/jonathan/careers-finder/internal/events"
	"github.com/jonathan/careers-finder/internal/output"
	"github.com/jonathan/careers-finder/internal/positions"
	"github.com/jonathan/careers-finder/internal/resolver"
	"github.com/jonathan/careers-finder/internal/search"
	"github.com/jonathan/careers-finder/internal/trace"
)

// scriptedResolver returns a canned outcome per company.
type scriptedResolver struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	runIDs   sync.Map
}

func (s *scriptedResolver) Resolve(ctx context.Context, name string) (resolver.Resolution, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
	s.mu.Unlock()
	s.runIDs.Store(name, trace.RunID(ctx))
	if trace.Company(ctx) != name {
		return resolver.Resolution{}, errors.New("company missing from context")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	switch name {
	case "Broken Ltd":
		return resolver.Resolution{Company: name, Status: resolver.StatusFailed},
			errors.Join(resolver.ErrSearchFailed, search.ErrNoResults)
	case "Zylo Corp":
		return resolver.Resolution{Company: name, Status: resolver.StatusNotRelevant, URL: "https://brandx.io"}, nil
	default:
		return resolver.Resolution{Company: name, Status: resolver.StatusFound, URL: "https://" + name + ".example/careers",
			Method: resolver.MethodSimilarity, Score: 1}, nil
	}
}

type fakeExtractor struct {
	err   error
	calls atomic.Int32
}

func (f *fakeExtractor) Extract(_ context.Context, company, _ string) ([]positions.Position, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []positions.Position{{Title: company + " Engineer", Type: "Full-time", Location: "London"}}, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	rows []*db.Resolution
}

func (f *fakeRecorder) RecordResolution(_ context.Context, r *db.Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, r)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []events.Resolved
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, msg events.Resolved) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

// stallingRecorder waits for its context to end, like an unreachable
// database.
type stallingRecorder struct {
	hadDeadline atomic.Bool
}

func (f *stallingRecorder) RecordResolution(ctx context.Context, _ *db.Resolution) error {
	_, ok := ctx.Deadline()
	f.hadDeadline.Store(ok)
	<-ctx.Done()
	return ctx.Err()
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"Acme", "Zylo"}, Dedupe([]string{" Acme", "Zylo", "", "Acme ", "  "}))
	assert.Empty(t, Dedupe(nil))
}

func TestRun_PerCompanyFailuresDoNotAbort(t *testing.T) {
	res := &scriptedResolver{}
	report, err := NewRunner(res, Options{}).Run(context.Background(), []string{"Acme", "Broken Ltd", "Zylo Corp", "Acme"})
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, resolver.StatusFound, report.Outcomes["Acme"].Resolution.Status)
	assert.ErrorIs(t, report.Outcomes["Broken Ltd"].Err, resolver.ErrSearchFailed)
	assert.Equal(t, resolver.StatusNotRelevant, report.Outcomes["Zylo Corp"].Resolution.Status)
	assert.Equal(t, 1, res.calls["Acme"])

	s := report.Summary()
	assert.Equal(t, Summary{Found: 1, NotRelevant: 1, Failed: 1}, s)
	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.False(t, report.Finished.Before(report.Started))
}

func TestRun_SharesRunIDAcrossCompanies(t *testing.T) {
	res := &scriptedResolver{}
	runID := uuid.New()
	ctx := trace.WithRunID(context.Background(), runID)

	report, err := NewRunner(res, Options{}).Run(ctx, []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, runID, report.RunID)
	for _, name := range []string{"A", "B", "C"} {
		got, ok := res.runIDs.Load(name)
		require.True(t, ok)
		assert.Equal(t, runID, got)
	}
}

func TestRun_RespectsConcurrencyLimit(t *testing.T) {
	res := &scriptedResolver{delay: 20 * time.Millisecond}
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	_, err := NewRunner(res, Options{Concurrency: 3}).Run(context.Background(), names)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.peak.Load(), int32(3))
	assert.Positive(t, res.peak.Load())
}

func TestRun_ExtractsAndWritesPositions(t *testing.T) {
	extractor := &fakeExtractor{}
	writer := output.NewWriter(t.TempDir(), false)
	runner := NewRunner(&scriptedResolver{}, Options{Extractor: extractor, Writer: writer})

	report, err := runner.Run(context.Background(), []string{"Acme", "Zylo Corp", "Broken Ltd"})
	require.NoError(t, err)

	acme := report.Outcomes["Acme"]
	require.Len(t, acme.Positions, 1)
	assert.Equal(t, writer.Path("Acme"), acme.PositionsFile)
	assert.True(t, writer.Exists("Acme"))
	assert.False(t, writer.Exists("Zylo Corp"))
	assert.Equal(t, int32(1), extractor.calls.Load())
	assert.Equal(t, 1, report.Summary().Positions)
}

func TestRun_ExtractionFailureIsRecorded(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("llm unavailable")}
	report, err := NewRunner(&scriptedResolver{}, Options{Extractor: extractor}).Run(context.Background(), []string{"Acme"})
	require.NoError(t, err)

	out := report.Outcomes["Acme"]
	assert.NoError(t, out.Err)
	assert.EqualError(t, out.PositionsErr, "llm unavailable")
	assert.Equal(t, resolver.StatusFound, out.Resolution.Status)
}

func TestRun_SkipExisting(t *testing.T) {
	writer := output.NewWriter(t.TempDir(), false)
	_, _, err := writer.Write("Acme", nil)
	require.NoError(t, err)
	res := &scriptedResolver{}

	report, err := NewRunner(res, Options{SkipExisting: true, Writer: writer}).Run(context.Background(), []string{"Acme", "Other"})
	require.NoError(t, err)
	assert.True(t, report.Outcomes["Acme"].Skipped)
	assert.Zero(t, res.calls["Acme"])
	assert.Equal(t, 1, res.calls["Other"])
	assert.Equal(t, 1, report.Summary().Skipped)
}

func TestRun_RecordsAndPublishes(t *testing.T) {
	recorder := &fakeRecorder{}
	publisher := &fakePublisher{err: errors.New("broker down")}
	report, err := NewRunner(&scriptedResolver{}, Options{Recorder: recorder, Publisher: publisher}).
		Run(context.Background(), []string{"Acme", "Broken Ltd"})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	require.Len(t, recorder.rows, 2)
	byCompany := map[string]*db.Resolution{}
	for _, row := range recorder.rows {
		byCompany[row.Company] = row
		assert.Equal(t, report.RunID, row.RunID)
	}
	assert.Equal(t, "found", byCompany["Acme"].Status)
	assert.Equal(t, "similarity", byCompany["Acme"].Method)
	assert.Equal(t, "failed", byCompany["Broken Ltd"].Status)
	assert.NotEmpty(t, byCompany["Broken Ltd"].ErrorMessage)

	assert.Len(t, publisher.msgs, 2)
}

func TestRun_Progress(t *testing.T) {
	var mu sync.Mutex
	var got []ProgressEvent
	runner := NewRunner(&scriptedResolver{}, Options{OnProgress: func(e ProgressEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}})

	_, err := runner.Run(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	require.Len(t, got, 3)

	dones := map[int]bool{}
	for _, e := range got {
		assert.Equal(t, 3, e.Total)
		dones[e.Done] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, dones)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := &scriptedResolver{}

	report, err := NewRunner(res, Options{}).Run(ctx, []string{"A", "B"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Outcomes)
}

func TestRun_RecorderCallsHaveDeadline(t *testing.T) {
	rec := &stallingRecorder{}
	runner := NewRunner(&scriptedResolver{}, Options{Recorder: rec, SinkTimeout: 50 * time.Millisecond})

	done := make(chan *Report, 1)
	go func() {
		report, _ := runner.Run(context.Background(), []string{"Acme"})
		done <- report
	}()

	select {
	case report := <-done:
		require.NotNil(t, report)
		assert.Equal(t, resolver.StatusFound, report.Outcomes["Acme"].Resolution.Status)
		assert.True(t, rec.hadDeadline.Load())
	case <-time.After(3 * time.Second):
		t.Fatal("batch blocked on the resolution recorder")
	}
}

func TestNewRunner_DefaultSinkTimeout(t *testing.T) {
	assert.Equal(t, DefaultSinkTimeout, NewRunner(&scriptedResolver{}, Options{}).opts.SinkTimeout)
}
