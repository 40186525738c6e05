// Package contract runs conformance validation and the round-trip check over a
// corpus of log lines and aggregates the outcome into a Report.
package contract

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/kumarabd/gokit/logger"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/metrics"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/cache"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/conformance"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/ingest"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/roundtrip"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Checker runs both checks over a corpus for one pinned schema generation
type Checker struct {
	config     *Config
	generation schema.Generation
	adapter    *ingest.Adapter
	validator  *conformance.Validator
	comparator *roundtrip.Comparator
	cache      *cache.Handler
	namespace  string
	log        *logger.Handler
	metric     *metrics.Handler
	tracer     trace.Tracer
}

// outcome is the per-line result of both checks
type outcome struct {
	failures   []conformance.Failure
	mismatches []roundtrip.Mismatch
}

// cached keeps the line text next to its outcome since cache keys are hashes
type cached struct {
	text    string
	outcome outcome
}

// NewChecker creates a checker. log, metric and store may be nil; without a store
// nothing is memoized.
func NewChecker(config *Config, log *logger.Handler, metric *metrics.Handler, store *cache.Handler) (*Checker, error) {
	if config == nil {
		return nil, fmt.Errorf("contract config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract config: %w", err)
	}

	gen, err := schema.LookupGeneration(config.Generation)
	if err != nil {
		return nil, err
	}
	var opts []schema.Option
	if config.DisallowUnknownFields {
		opts = append(opts, schema.DisallowUnknownFields())
	}
	s := schema.New(gen, opts...)

	adapter, err := ingest.NewAdapter(config.Ingest, s, log, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ingestion adapter: %w", err)
	}

	validation := config.Validation
	if validation == nil {
		validation = &conformance.Config{}
	}
	rt := config.RoundTrip
	if rt == nil {
		rt = &roundtrip.Config{}
	}

	namespace := fmt.Sprintf("%s/%t/%t/%t", gen.Name, config.DisallowUnknownFields, validation.FailFast, rt.UnicodeNormalization)

	return &Checker{
		config:     config,
		generation: gen,
		adapter:    adapter,
		validator:  conformance.New(validation),
		comparator: roundtrip.New(s, rt),
		cache:      store,
		namespace:  namespace,
		log:        log,
		metric:     metric,
		tracer:     otel.Tracer("logcontract/contract"),
	}, nil
}

// Run checks texts, one log line each, numbered from 1.
func (c *Checker) Run(ctx context.Context, texts []string) (*Report, error) {
	return c.RunLines(ctx, ingest.Lines(texts))
}

// RunLines checks already numbered lines. Ingestion failures abort the run with an
// *ingest.Error for the lowest-numbered failing line; conformance failures and
// mismatches are collected into the report.
func (c *Checker) RunLines(ctx context.Context, lines []ingest.Line) (*Report, error) {
	ctx, span := c.tracer.Start(ctx, "Checker.Run")
	defer span.End()

	report := &Report{
		RunID:      uuid.NewString(),
		Generation: c.generation.Name,
		Policy:     c.adapter.Policy(),
		StartedAt:  time.Now(),
		TotalLines: len(lines),
	}
	span.SetAttributes(
		attribute.String("run.id", report.RunID),
		attribute.String("schema.generation", report.Generation),
		attribute.Int("lines.total", report.TotalLines),
	)

	kept, skipped, err := c.adapter.Screen(lines)
	if err != nil {
		return nil, c.abort(span, report, err)
	}
	for _, line := range skipped {
		report.Skipped = append(report.Skipped, line.Number)
	}

	outcomes, err := c.checkAll(ctx, kept)
	if err != nil {
		if ctx.Err() == nil && c.metric != nil {
			c.metric.IncIngestRejectedTotal(ingest.RejectReason(err))
		}
		return nil, c.abort(span, report, err)
	}

	report.Records = len(kept)
	for i, o := range outcomes {
		if len(o.failures) > 0 {
			report.Conformance = append(report.Conformance, ConformanceFinding{Line: kept[i].Number, Failures: o.failures})
		}
		if len(o.mismatches) > 0 {
			report.RoundTrip = append(report.RoundTrip, RoundTripFinding{Line: kept[i].Number, Mismatches: o.mismatches})
		}
	}
	report.Duration = time.Since(report.StartedAt)
	c.record(report)

	span.SetAttributes(
		attribute.Int("lines.skipped", len(report.Skipped)),
		attribute.Int("records", report.Records),
		attribute.Bool("conformance.passed", report.ConformancePassed()),
		attribute.Bool("roundtrip.passed", report.RoundTripPassed()),
	)
	if !report.Passed() {
		span.SetStatus(codes.Error, "contract violated")
	}

	if c.log != nil {
		c.log.Info().
			Str("run_id", report.RunID).
			Str("generation", report.Generation).
			Int("lines", report.TotalLines).
			Int("skipped", len(report.Skipped)).
			Int("records", report.Records).
			Bool("conformance_passed", report.ConformancePassed()).
			Bool("roundtrip_passed", report.RoundTripPassed()).
			Dur("duration", report.Duration).
			Msg("check run completed")
	}
	return report, nil
}

// checkAll checks lines in parallel and returns their outcomes in input order.
// Every line is attempted so the reported failure does not depend on scheduling.
func (c *Checker) checkAll(ctx context.Context, lines []ingest.Line) ([]outcome, error) {
	outcomes := make([]outcome, len(lines))
	errs := make([]error, len(lines))

	workers := c.config.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i], errs[i] = c.checkLine(line)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}

func (c *Checker) checkLine(line ingest.Line) (outcome, error) {
	key := cache.Key(c.namespace, line.Text)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			if hit, ok := v.(cached); ok && hit.text == line.Text {
				return hit.outcome, nil
			}
		}
	}

	original, rec, err := c.adapter.DecodeLine(line)
	if err != nil {
		return outcome{}, err
	}

	o := outcome{failures: c.validator.Validate(rec)}
	res, err := c.comparator.CompareDecoded(original, rec)
	if err != nil {
		return outcome{}, &ingest.Error{Line: line, Err: err}
	}
	o.mismatches = res.Mismatches

	if c.cache != nil {
		c.cache.Set(key, cached{text: line.Text, outcome: o})
	}
	return o, nil
}

func (c *Checker) record(report *Report) {
	if c.metric == nil {
		return
	}
	c.metric.AddRecordsChecked(report.Generation, report.Records)
	for _, f := range report.Conformance {
		for _, failure := range f.Failures {
			c.metric.IncValidationFailure(string(failure.Field))
		}
	}
	for _, f := range report.RoundTrip {
		for _, m := range f.Mismatches {
			c.metric.IncRoundTripMismatch(m.Direction.String())
		}
	}
	c.metric.ObserveRunLatency(report.Duration, report.Generation, report.Passed())
}

func (c *Checker) abort(span trace.Span, report *Report, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "run aborted")
	if c.metric != nil {
		c.metric.ObserveRunLatency(time.Since(report.StartedAt), report.Generation, false)
	}
	if c.log != nil {
		c.log.Error().Err(err).Str("run_id", report.RunID).Msg("check run aborted")
	}
	return err
}
