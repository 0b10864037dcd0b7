package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/aggregate"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/couchcryptid/censoc-variation-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	reports []domain.VariationReport
	err     error
}

func (s *recordingSink) PublishReport(_ context.Context, r domain.VariationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

type recordingCheckpointer struct {
	cells []aggregate.Cell
}

func (c *recordingCheckpointer) SaveCheckpoint(_ context.Context, cells []aggregate.Cell) error {
	c.cells = cells
	return nil
}

// seededAggregator holds two years of constant monthly deaths for two sexes.
func seededAggregator() *aggregate.Aggregator {
	agg := aggregate.New()
	for _, sex := range []string{"female", "male"} {
		for year := 1994; year <= 1995; year++ {
			for month := 1; month <= 12; month++ {
				agg.Add(domain.DeathRecord{
					Sex:        sex,
					AgeGroup:   "75-84",
					DeathYear:  year,
					DeathMonth: month,
					Weight:     10,
				})
			}
		}
	}
	return agg
}

func newReporter(t *testing.T, src pipeline.SeriesSource, clock clockwork.Clock) *pipeline.Reporter {
	t.Helper()
	r, err := pipeline.NewReporter(src, pipeline.ReportConfig{
		Strata:   domain.StrataSex,
		Workers:  2,
		Interval: time.Minute,
	}, clock, slog.Default(), newTestMetrics())
	require.NoError(t, err)
	return r
}

func TestNewReporter_Validation(t *testing.T) {
	agg := aggregate.New()

	_, err := pipeline.NewReporter(agg, pipeline.ReportConfig{LeapRule: "julian", Interval: time.Second}, nil, slog.Default(), newTestMetrics())
	assert.Error(t, err)

	_, err = pipeline.NewReporter(agg, pipeline.ReportConfig{Interval: 0}, nil, slog.Default(), newTestMetrics())
	assert.Error(t, err)
}

func TestReporter_Generate(t *testing.T) {
	fixed := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	agg := seededAggregator()
	r := newReporter(t, agg, clockwork.NewFakeClockAt(fixed))

	sink := &recordingSink{}
	cp := &recordingCheckpointer{}
	r.AddSink("memory", sink)
	r.SetCheckpointer(cp)

	report, generated, err := r.Generate(context.Background())
	require.NoError(t, err)
	require.True(t, generated)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, domain.StrataSex, report.Strata)
	assert.Equal(t, "gregorian", report.LeapRule)
	assert.Equal(t, fixed, report.GeneratedAt)
	assert.Equal(t, 2, report.Categories)
	assert.Len(t, report.Variations, 48)

	female := report.ForCategory("sex=female")
	require.Len(t, female, 24)
	defined := 0
	for _, v := range female {
		if v.Defined() {
			defined++
		}
	}
	assert.Equal(t, 24-11, defined)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, report.ID, latest.ID)
	assert.Equal(t, 1, sink.count())
	assert.Len(t, cp.cells, 48)
}

func TestReporter_GenerateSkipsUnchanged(t *testing.T) {
	agg := seededAggregator()
	r := newReporter(t, agg, clockwork.NewFakeClock())
	sink := &recordingSink{}
	r.AddSink("memory", sink)

	first, generated, err := r.Generate(context.Background())
	require.NoError(t, err)
	require.True(t, generated)

	_, generated, err = r.Generate(context.Background())
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, 1, sink.count())

	agg.Add(domain.DeathRecord{Sex: "female", AgeGroup: "75-84", DeathYear: 1996, DeathMonth: 1, Weight: 1})

	second, generated, err := r.Generate(context.Background())
	require.NoError(t, err)
	require.True(t, generated)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, sink.count())
}

func TestReporter_GenerateEmptySource(t *testing.T) {
	r := newReporter(t, aggregate.New(), clockwork.NewFakeClock())

	_, generated, err := r.Generate(context.Background())
	require.NoError(t, err)
	assert.False(t, generated)

	_, ok := r.Latest()
	assert.False(t, ok)
}

func TestReporter_SinkErrorStillUpdatesLatest(t *testing.T) {
	metrics := newTestMetrics()
	r, err := pipeline.NewReporter(seededAggregator(), pipeline.ReportConfig{
		Strata:   domain.StrataTotal,
		LeapRule: "legacy",
		Interval: time.Minute,
	}, clockwork.NewFakeClock(), slog.Default(), metrics)
	require.NoError(t, err)

	good := &recordingSink{}
	r.AddSink("broken", &recordingSink{err: errors.New("connection refused")})
	r.AddSink("memory", good)

	report, generated, err := r.Generate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to broken")
	assert.True(t, generated)
	assert.Equal(t, "legacy", report.LeapRule)
	assert.Equal(t, 1, good.count(), "later sinks still receive the report")

	_, ok := r.Latest()
	assert.True(t, ok)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ReportSinkErrors.WithLabelValues("broken")), 1e-12)
}

func TestReporter_RunOnTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := newReporter(t, seededAggregator(), fc)
	sink := &recordingSink{}
	r.AddSink("memory", sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	_, ok := r.Latest()
	assert.False(t, ok, "no report before the first tick")

	fc.Advance(time.Minute)
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}

func TestReporter_Seed(t *testing.T) {
	agg := aggregate.New()
	r := newReporter(t, agg, clockwork.NewFakeClock())

	r.Seed(domain.VariationReport{ID: "cached"})
	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "cached", latest.ID)

	_, generated, err := r.Generate(context.Background())
	require.NoError(t, err)
	assert.False(t, generated, "nothing aggregated yet")

	agg.Add(domain.DeathRecord{Sex: "male", AgeGroup: "85+", DeathYear: 1990, DeathMonth: 1, Weight: 1})
	report, generated, err := r.Generate(context.Background())
	require.NoError(t, err)
	require.True(t, generated)

	r.Seed(domain.VariationReport{ID: "stale"})
	latest, _ = r.Latest()
	assert.Equal(t, report.ID, latest.ID, "seed never replaces a generated report")
}
