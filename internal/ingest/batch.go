package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/calendar"
	"github.com/JakeFAU/tournament-scraper/internal/clock"
	"github.com/JakeFAU/tournament-scraper/internal/logging"
	"github.com/JakeFAU/tournament-scraper/internal/metrics"
	"github.com/JakeFAU/tournament-scraper/internal/settle"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

// Mirror copies a published snapshot into the local store. It reports false
// when the remote has no snapshot for the month.
type Mirror interface {
	Fetch(ctx context.Context, year, month int) (bool, error)
}

// Plan selects the months a batch run touches.
type Plan struct {
	// MonthsAhead and MonthsBack define the mirror window: it starts
	// MonthsAhead months after the current month and covers MonthsBack months
	// walking backward.
	MonthsAhead int
	MonthsBack  int
	// Scrape enables the fresh-scrape phase over Start..End, inclusive.
	Scrape bool
	Start  calendar.Month
	End    calendar.Month
	// SkipExisting leaves months alone when a snapshot is already stored.
	SkipExisting bool
}

// MirrorWindow returns the months mirrored relative to now, newest first.
func (p Plan) MirrorWindow(now calendar.Month) []calendar.Month {
	return calendar.Walk(now.AddMonths(p.MonthsAhead), p.MonthsBack)
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	RunID         string
	Mirrored      int
	MirrorMissing int
	MirrorFailed  int
	Scraped       []Result
	Skipped       int
	Failed        int
}

// Batch runs the mirror phase and then the optional scrape phase.
type Batch struct {
	orchestrator *Orchestrator
	mirror       Mirror
	clock        clock.Clock
	logger       *zap.Logger
}

// NewBatch builds a Batch. A nil mirror disables the mirror phase.
func NewBatch(o *Orchestrator, mirror Mirror, clk clock.Clock, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{orchestrator: o, mirror: mirror, clock: clk, logger: logger}
}

// Run executes plan. Individual month failures are logged and counted; only
// cancellation of ctx is returned as an error.
func (b *Batch) Run(ctx context.Context, plan Plan) (BatchResult, error) {
	res := BatchResult{RunID: uuid.NewString()}
	ctx, span := tracer.Start(ctx, "ingest.Batch")
	span.SetAttributes(attribute.String("run_id", res.RunID), attribute.Bool("scrape", plan.Scrape))
	defer span.End()
	logger := b.logger.With(zap.String("run_id", res.RunID))

	if b.mirror != nil {
		b.mirrorPhase(ctx, logger, plan, &res)
	} else {
		logger.Info("mirror disabled")
	}

	if plan.Scrape {
		dedup := tournament.NewDeduper()
		for _, m := range calendar.Between(plan.Start, plan.End) {
			if ctx.Err() != nil {
				break
			}
			b.scrapePhaseMonth(ctx, logger, plan, m, dedup, &res)
		}
	}

	logger.Info("batch finished",
		zap.Int("mirrored", res.Mirrored),
		zap.Int("mirror_missing", res.MirrorMissing),
		zap.Int("mirror_failed", res.MirrorFailed),
		zap.Int("scraped", len(res.Scraped)),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("batch %s: %w", res.RunID, err)
	}
	return res, nil
}

func (b *Batch) mirrorPhase(ctx context.Context, logger *zap.Logger, plan Plan, res *BatchResult) {
	months := plan.MirrorWindow(calendar.FromTime(b.clock.Now()))
	tasks := make([]settle.Task[bool], len(months))
	for i, m := range months {
		tasks[i] = func(ctx context.Context) (bool, error) {
			return b.mirror.Fetch(ctx, m.Year, m.Month)
		}
	}
	for i, out := range settle.All(ctx, tasks...) {
		switch {
		case !out.OK():
			res.MirrorFailed++
			logger.Warn("mirror failed", append(logging.Month(months[i].Year, months[i].Month), zap.Error(out.Err))...)
		case out.Value:
			res.Mirrored++
		default:
			res.MirrorMissing++
		}
	}
}

func (b *Batch) scrapePhaseMonth(
	ctx context.Context,
	logger *zap.Logger,
	plan Plan,
	m calendar.Month,
	dedup *tournament.Deduper,
	res *BatchResult,
) {
	fields := logging.Month(m.Year, m.Month)
	if plan.SkipExisting {
		ok, err := b.orchestrator.store.Exists(ctx, m.Year, m.Month)
		if err != nil {
			logger.Warn("snapshot presence check failed", append(fields, zap.Error(err))...)
		}
		if ok {
			res.Skipped++
			logger.Info("skipping existing snapshot", fields...)
			return
		}
	}
	r, err := b.orchestrator.scrapeMonth(ctx, m.Year, m.Month, dedup, res.RunID)
	if err != nil {
		res.Failed++
		metrics.ObserveMonthFailed()
		logger.Error("month failed", append(fields, zap.Error(err))...)
		return
	}
	res.Scraped = append(res.Scraped, r)
}
