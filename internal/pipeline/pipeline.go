package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// BatchExtractor reads up to batchSize raw telegrams from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawTelegram, error)
}

// Transformer converts a raw telegram into a telegram log record.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawTelegram) (domain.OutputEvent, error)
}

// BatchLoader writes a batch of telegram log records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline orchestrates the extract-decode-load loop for KN-15 telegrams.
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

// CheckReadiness returns nil once the pipeline has loaded at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any telegrams yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-decode-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.TelegramsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	// The batch stays in hand until it is loaded. Nothing is committed on
	// failure, so offsets never move past an undelivered telegram.
	for {
		err := p.transformAndLoad(ctx, rawBatch)
		if err == nil {
			p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
			p.ready.Store(true)
			*backoff = initialBackoff
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("batch failed, retrying", "error", err, "batch_size", len(rawBatch), "backoff", *backoff)
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return false
		}
	}
}

// transformAndLoad decodes every telegram of the batch, loads the records and
// commits the offsets. Parse failures already arrive as rejected records, so
// any error here is a collaborator failure and the whole batch is retried.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawTelegram) error {
	outBatch := make([]domain.OutputEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.metrics.TransformErrors.Inc()
			return fmt.Errorf("transform %s/%d@%d: %w", raw.Topic, raw.Partition, raw.Offset, err)
		}
		outBatch = append(outBatch, out)
	}

	if err := p.loader.LoadBatch(ctx, outBatch); err != nil {
		return fmt.Errorf("load batch: %w", err)
	}

	p.metrics.RecordsProduced.Add(float64(len(outBatch)))

	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}

	return nil
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the telegram offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawTelegram) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

const initialBackoff = 200 * time.Millisecond
