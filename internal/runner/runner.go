package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldjudge/internal/cache"
	"fieldjudge/internal/judge"
	"fieldjudge/internal/output"
	"fieldjudge/internal/retry"
	"fieldjudge/internal/verdict"
	"fieldjudge/internal/work"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Sink receives resolved records. Implemented by output.Writer.
type Sink interface {
	Append(record output.Record) error
}

// Config bounds a batch run.
type Config struct {
	// Concurrency caps simultaneous in-flight judge calls.
	Concurrency int
	// PromptVersion is stamped into fingerprints and cache entries.
	PromptVersion string
	Retry         retry.Config
}

// Deps aggregates the collaborators of a run.
type Deps struct {
	Judge  judge.Judge
	Cache  cache.Store
	Logger *zap.Logger
}

// Summary reports what a completed run did.
type Summary struct {
	RunID     string
	Total     int
	ByClass   map[verdict.Classification]int
	Precheck  int
	CacheHits int
	Judged    int
	Degraded  int
}

// Runner drives the full work set: precheck, cache lookup, judge call under
// retry, cache write, artifact append. One verdict per unit, always.
type Runner struct {
	cfg    Config
	deps   Deps
	runID  string
	flight singleflight.Group
}

func New(cfg Config, deps Deps) (*Runner, error) {
	if cfg.Concurrency < 1 {
		return nil, errors.New("concurrency must be at least 1")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry config: %w", err)
	}
	if deps.Judge == nil {
		return nil, errors.New("judge is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("cache store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Runner{
		cfg:   cfg,
		deps:  deps,
		runID: uuid.NewString(),
	}, nil
}

// RunID identifies this run in logs and output records.
func (r *Runner) RunID() string {
	return r.runID
}

// resolution is the shared result of classifying one fingerprint.
type resolution struct {
	verdict  verdict.Verdict
	cacheHit bool
	attempts int
}

// Run processes every unit and appends one record per unit to the sink in
// input order. A unit-level failure degrades that unit to Unsure; only sink
// failures and cancellation abort the run.
func (r *Runner) Run(ctx context.Context, units []work.Unit, sink Sink) (*Summary, error) {
	summary := &Summary{
		RunID:   r.runID,
		Total:   len(units),
		ByClass: make(map[verdict.Classification]int),
	}

	emitter := newOrderedEmitter(sink, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i, unit := range units {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			record, err := r.resolve(gctx, unit)
			if err != nil {
				return err
			}
			return emitter.emit(i, *record)
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	for _, record := range emitter.emitted() {
		summary.ByClass[record.Classification]++
		switch {
		case record.Provenance == verdict.FromPrecheck:
			summary.Precheck++
		case record.Provenance == verdict.FromFailure:
			summary.Degraded++
		case record.CacheHit:
			summary.CacheHits++
		default:
			summary.Judged++
		}
	}

	if err != nil {
		return summary, fmt.Errorf("batch run: %w", err)
	}
	return summary, nil
}

// resolve produces exactly one record for the unit. The only errors it returns
// are cancellation and sink-independent fatal conditions; everything judge- or
// input-related degrades into the record itself.
func (r *Runner) resolve(ctx context.Context, unit work.Unit) (*output.Record, error) {
	start := time.Now()

	record := &output.Record{
		RunID:    r.runID,
		RecordID: unit.RecordID,
		Field:    unit.Field,
	}

	fill := func(v verdict.Verdict) {
		record.Classification = v.Classification
		record.Explanation = v.Explanation
		record.Provenance = v.Provenance
		record.LatencyMs = time.Since(start).Milliseconds()
	}

	if err := unit.Validate(); err != nil {
		r.deps.Logger.Warn("skipping judge for malformed unit",
			zap.String("record_id", unit.RecordID),
			zap.String("field", unit.Field),
			zap.Error(err),
		)
		fill(verdict.Verdict{
			Classification: verdict.Unsure,
			Explanation:    err.Error(),
			Provenance:     verdict.FromFailure,
		})
		return record, nil
	}

	fingerprint := work.Fingerprint(unit, r.cfg.PromptVersion)
	record.Fingerprint = fingerprint

	if v := work.Precheck(unit); v != nil {
		fill(*v)
		return record, nil
	}

	res, err, shared := r.flight.Do(fingerprint, func() (any, error) {
		return r.classify(ctx, unit, fingerprint)
	})
	if err != nil {
		// Only cancellation escapes classify.
		return nil, err
	}

	resolved := res.(*resolution)
	fill(resolved.verdict)
	record.CacheHit = resolved.cacheHit || shared
	record.Attempts = resolved.attempts

	return record, nil
}

// classify runs the cache-miss path for one fingerprint: read-through, judged
// under retry, write-through. Concurrent duplicates are collapsed by the
// singleflight group around it.
func (r *Runner) classify(ctx context.Context, unit work.Unit, fingerprint string) (*resolution, error) {
	entry, ok, err := r.deps.Cache.Get(ctx, fingerprint)
	if err != nil {
		r.deps.Logger.Warn("cache read failed, falling through to judge",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
	}
	if ok {
		return &resolution{verdict: entry.Verdict, cacheHit: true}, nil
	}

	raw, attempts, err := retry.Do(ctx, r.cfg.Retry, r.deps.Logger, "judge classify", judge.Retryable,
		func(ctx context.Context) (verdict.Verdict, error) {
			return r.judgeOnce(ctx, unit)
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.deps.Logger.Warn("judge exhausted, degrading to unsure",
			zap.String("record_id", unit.RecordID),
			zap.String("field", unit.Field),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)

		return &resolution{
			verdict: verdict.Verdict{
				Classification: verdict.Unsure,
				Explanation:    fmt.Sprintf("judge unavailable or unparseable after %d attempts: %v", attempts, err),
				Provenance:     verdict.FromFailure,
			},
			attempts: attempts,
		}, nil
	}

	if putErr := r.deps.Cache.Put(ctx, cache.Entry{
		Fingerprint:   fingerprint,
		Verdict:       raw,
		PromptVersion: r.cfg.PromptVersion,
	}); putErr != nil {
		r.deps.Logger.Warn("cache write failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(putErr),
		)
	}

	return &resolution{verdict: raw, attempts: attempts}, nil
}

// judgeOnce performs a single judge call and normalizes its label. An
// out-of-taxonomy label becomes a SchemaError so the retry loop can resample.
func (r *Runner) judgeOnce(ctx context.Context, unit work.Unit) (verdict.Verdict, error) {
	raw, err := r.deps.Judge.Classify(ctx, unit)
	if err != nil {
		return verdict.Verdict{}, err
	}

	classification, err := verdict.Normalize(raw.Label)
	if err != nil {
		return verdict.Verdict{}, &judge.SchemaError{Reason: "label outside taxonomy", Raw: raw.Raw, Err: err}
	}

	return verdict.Verdict{
		Classification: classification,
		Explanation:    raw.Explanation,
		Provenance:     verdict.FromJudge,
	}, nil
}
