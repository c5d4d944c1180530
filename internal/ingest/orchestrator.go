// Package ingest scrapes every source for a month, merges and geocodes the
// results, and persists them as a snapshot.
package ingest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/logging"
	"github.com/JakeFAU/tournament-scraper/internal/metrics"
	"github.com/JakeFAU/tournament-scraper/internal/publisher"
	"github.com/JakeFAU/tournament-scraper/internal/settle"
	"github.com/JakeFAU/tournament-scraper/internal/snapshot"
	"github.com/JakeFAU/tournament-scraper/internal/source"
	"github.com/JakeFAU/tournament-scraper/internal/telemetry"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

var tracer = telemetry.Tracer("github.com/JakeFAU/tournament-scraper/internal/ingest")

// Geocoder resolves free-text city names. A nil result means unknown.
type Geocoder interface {
	Find(raw string) *tournament.Geo
}

// SnapshotStore persists monthly snapshots.
type SnapshotStore interface {
	Write(ctx context.Context, year, month int, list []*tournament.Tournament) error
	Exists(ctx context.Context, year, month int) (bool, error)
}

// Result summarizes one scraped month.
type Result struct {
	Year  int
	Month int
	File  string
	// Sources maps each source that answered to the number of records it
	// returned. Failed lists the sources that did not answer.
	Sources    map[string]int
	Failed     []string
	Duplicates int
	Geocoded   int
	Written    int
}

// Orchestrator runs one month of ingestion.
type Orchestrator struct {
	sources   []source.Source
	geocoder  Geocoder
	store     SnapshotStore
	publisher publisher.Publisher
	topic     string
	logger    *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher announces every written snapshot on topic.
func WithPublisher(p publisher.Publisher, topic string) Option {
	return func(o *Orchestrator) {
		o.publisher = p
		o.topic = topic
	}
}

// New builds an Orchestrator. Sources are merged in the order given.
func New(sources []source.Source, geocoder Geocoder, store SnapshotStore, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		sources:  sources,
		geocoder: geocoder,
		store:    store,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScrapeMonth fetches every source concurrently and writes the merged month.
// A source that fails contributes nothing; the snapshot is still written.
func (o *Orchestrator) ScrapeMonth(ctx context.Context, year, month int) (Result, error) {
	return o.scrapeMonth(ctx, year, month, tournament.NewDeduper(), "")
}

func (o *Orchestrator) scrapeMonth(ctx context.Context, year, month int, dedup *tournament.Deduper, runID string) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "ingest.ScrapeMonth")
	span.SetAttributes(attribute.Int("year", year), attribute.Int("month", month))
	defer func() {
		span.SetAttributes(attribute.Int("written", res.Written), attribute.Int("failed_sources", len(res.Failed)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := o.logger.With(logging.Month(year, month)...)
	if runID != "" {
		logger = logger.With(zap.String("run_id", runID))
	}
	res = Result{
		Year:    year,
		Month:   month,
		File:    snapshot.FileName(year, month),
		Sources: make(map[string]int, len(o.sources)),
	}

	tasks := make([]settle.Task[[]*tournament.Tournament], len(o.sources))
	for i, src := range o.sources {
		tasks[i] = func(ctx context.Context) ([]*tournament.Tournament, error) {
			return src.FetchTournaments(ctx, year, month)
		}
	}
	outcomes := settle.All(ctx, tasks...)

	var merged []*tournament.Tournament
	for i, out := range outcomes {
		name := o.sources[i].Name()
		if !out.OK() {
			res.Failed = append(res.Failed, name)
			logger.Warn("source failed", zap.String("source", name), zap.Error(out.Err))
			continue
		}
		res.Sources[name] = len(out.Value)
		metrics.ObserveTournaments(name, len(out.Value))
		merged = append(merged, out.Value...)
	}

	unique := dedup.Filter(merged, func(t *tournament.Tournament) {
		res.Duplicates++
		logger.Info("duplicate tournament discarded",
			zap.String("source", t.Source),
			zap.String("id", t.ID),
			zap.String("title", t.Title),
		)
	})
	metrics.ObserveDuplicates(res.Duplicates)

	for _, t := range unique {
		if t.City == "" || o.geocoder == nil {
			continue
		}
		if g := o.geocoder.Find(t.City); g != nil {
			t.Geo = g
			res.Geocoded++
		}
	}

	if cerr := ctx.Err(); cerr != nil {
		return res, fmt.Errorf("scrape %d-%d: %w", year, month, cerr)
	}
	if werr := o.store.Write(ctx, year, month, unique); werr != nil {
		return res, fmt.Errorf("write %s: %w", res.File, werr)
	}
	res.Written = len(unique)
	logger.Info("month scraped",
		zap.Int("tournaments", res.Written),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("geocoded", res.Geocoded),
		zap.Strings("failed_sources", res.Failed),
	)

	o.notify(ctx, logger, res, runID)
	return res, nil
}

func (o *Orchestrator) notify(ctx context.Context, logger *zap.Logger, res Result, runID string) {
	if o.publisher == nil || o.topic == "" {
		return
	}
	payload := publisher.SnapshotWritten{
		RunID: runID,
		Year:  res.Year,
		Month: res.Month,
		File:  res.File,
		Count: res.Written,
	}
	if _, err := o.publisher.Publish(ctx, o.topic, payload); err != nil {
		logger.Warn("snapshot notification failed", zap.String("topic", o.topic), zap.Error(err))
	}
}
