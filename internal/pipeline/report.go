package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/aggregate"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/couchcryptid/censoc-variation-service/internal/observability"
	"github.com/couchcryptid/censoc-variation-service/internal/seasonal"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// SeriesSource supplies contiguous per-category series and the state needed
// to checkpoint them.
type SeriesSource interface {
	Series(strata domain.Strata) []domain.Series
	Gaps(strata domain.Strata) []aggregate.Gap
	Snapshot() []aggregate.Cell
	Version() uint64
}

// ReportSink publishes a finished report.
type ReportSink interface {
	PublishReport(ctx context.Context, report domain.VariationReport) error
}

// Checkpointer persists aggregate cells so a restarted service can resume
// from its committed offsets.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, cells []aggregate.Cell) error
}

// ReportConfig controls how reports are computed.
type ReportConfig struct {
	Strata   domain.Strata
	LeapRule string
	Workers  int
	Interval time.Duration
}

type namedSink struct {
	name string
	sink ReportSink
}

// Reporter periodically runs the seasonal estimator over the aggregated
// series and fans the report out to its sinks. A report is only recomputed
// when the source has changed since the previous one.
type Reporter struct {
	source     SeriesSource
	cfg        ReportConfig
	rule       seasonal.LeapRule
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	sinks      []namedSink
	checkpoint Checkpointer

	mu          sync.Mutex // serializes Generate
	lastVersion uint64
	latest      atomic.Pointer[domain.VariationReport]
}

// NewReporter validates cfg and creates a Reporter. A nil clock uses real time.
func NewReporter(src SeriesSource, cfg ReportConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Reporter, error) {
	rule, ok := seasonal.ParseLeapRule(cfg.LeapRule)
	if !ok {
		return nil, fmt.Errorf("create reporter: unknown leap rule %q", cfg.LeapRule)
	}
	if cfg.LeapRule == "" {
		cfg.LeapRule = seasonal.RuleGregorian
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("create reporter: interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reporter{
		source:  src,
		cfg:     cfg,
		rule:    rule,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// AddSink registers a sink under name, used in logs and metrics labels.
func (r *Reporter) AddSink(name string, sink ReportSink) {
	r.sinks = append(r.sinks, namedSink{name: name, sink: sink})
}

// SetCheckpointer enables checkpointing after each new report.
func (r *Reporter) SetCheckpointer(cp Checkpointer) {
	r.checkpoint = cp
}

// Latest returns the most recent report, if any.
func (r *Reporter) Latest() (domain.VariationReport, bool) {
	rep := r.latest.Load()
	if rep == nil {
		return domain.VariationReport{}, false
	}
	return *rep, true
}

// Seed makes report available through Latest until the first report is
// generated. It does nothing once a report exists.
func (r *Reporter) Seed(report domain.VariationReport) {
	r.latest.CompareAndSwap(nil, &report)
}

// Run generates a report on every tick until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	r.logger.Info("reporter started",
		"interval", r.cfg.Interval,
		"strata", r.cfg.Strata,
		"leap_rule", r.cfg.LeapRule,
		"workers", r.cfg.Workers,
	)

	ticker := r.clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reporter stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if _, _, err := r.Generate(ctx); err != nil {
				r.logger.Error("report publish failed", "error", err)
			}
		}
	}
}

// Generate computes and publishes a report when the source has changed.
// The bool result is false when nothing changed or nothing has been
// aggregated yet. Sink failures do not prevent the report from becoming
// Latest; they are joined into the returned error.
func (r *Reporter) Generate(ctx context.Context) (domain.VariationReport, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	version := r.source.Version()
	if version == 0 || (version == r.lastVersion && r.latest.Load() != nil) {
		return domain.VariationReport{}, false, nil
	}

	start := time.Now()
	series := r.source.Series(r.cfg.Strata)
	variations := seasonal.EstimateAll(series, r.rule, r.cfg.Workers)

	report := domain.VariationReport{
		ID:          uuid.NewString(),
		Strata:      r.cfg.Strata,
		LeapRule:    r.cfg.LeapRule,
		GeneratedAt: r.clock.Now().UTC(),
		Categories:  len(series),
		Variations:  variations,
	}
	r.latest.Store(&report)
	r.lastVersion = version

	undefined := 0
	for _, v := range variations {
		if !v.Defined() {
			undefined++
		}
	}
	gaps := len(r.source.Gaps(r.cfg.Strata))

	r.metrics.ReportsGenerated.Inc()
	r.metrics.Categories.Set(float64(len(series)))
	r.metrics.UndefinedPeriods.Set(float64(undefined))
	r.metrics.ZeroFilledPeriods.Set(float64(gaps))

	var errs []error
	for _, s := range r.sinks {
		if err := s.sink.PublishReport(ctx, report); err != nil {
			r.metrics.ReportSinkErrors.WithLabelValues(s.name).Inc()
			errs = append(errs, fmt.Errorf("publish to %s: %w", s.name, err))
		}
	}
	if r.checkpoint != nil {
		if err := r.checkpoint.SaveCheckpoint(ctx, r.source.Snapshot()); err != nil {
			r.metrics.ReportSinkErrors.WithLabelValues("checkpoint").Inc()
			errs = append(errs, fmt.Errorf("save checkpoint: %w", err))
		}
	}
	r.metrics.ReportDuration.Observe(time.Since(start).Seconds())

	r.logger.Info("variation report generated",
		"report_id", report.ID,
		"categories", report.Categories,
		"periods", len(variations),
		"undefined", undefined,
		"zero_filled", gaps,
	)
	if gaps > 0 {
		r.logger.Warn("series contain months without records", "zero_filled", gaps, "strata", r.cfg.Strata)
	}

	return report, true, errors.Join(errs...)
}
