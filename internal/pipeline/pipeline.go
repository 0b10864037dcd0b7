package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/couchcryptid/censoc-variation-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into a validated death record.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.DeathRecord, error)
}

// BatchLoader accumulates death records.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.DeathRecord) error
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any records yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad transforms each message in the batch, loads the successes,
// and commits offsets. Rejected messages are committed immediately since
// retrying cannot fix them. Returns the number of loaded records and false if
// the pipeline should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration) (int, bool) {
	records := make([]domain.DeathRecord, 0, len(rawBatch))
	successfulRaws := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		rec, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			reason := RejectReason(err)
			level := slog.LevelWarn
			if reason == ReasonOutOfWindow {
				level = slog.LevelDebug
			}
			p.logger.Log(ctx, level, "transform failed, skipping message",
				"error", err,
				"reason", reason,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.WithLabelValues(reason).Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		records = append(records, rec)
		successfulRaws = append(successfulRaws, raw)
	}

	if len(records) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, records); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(records))
		return 0, p.backoffOrStop(ctx, backoff)
	}

	p.metrics.RecordsAggregated.Add(float64(len(records)))

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	return len(records), true
}

// Reject reasons label the transform_errors_total metric.
const (
	ReasonParse       = "parse"
	ReasonInvalid     = "invalid"
	ReasonOutOfWindow = "out_of_window"
)

// RejectReason classifies a transform error.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfWindow):
		return ReasonOutOfWindow
	case errors.Is(err, domain.ErrInvalidRecord):
		return ReasonInvalid
	default:
		return ReasonParse
	}
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
