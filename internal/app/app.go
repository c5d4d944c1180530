// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/clock"
	"github.com/JakeFAU/tournament-scraper/internal/clock/system"
	"github.com/JakeFAU/tournament-scraper/internal/config"
	"github.com/JakeFAU/tournament-scraper/internal/fetcher"
	collyfetcher "github.com/JakeFAU/tournament-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/tournament-scraper/internal/geo"
	"github.com/JakeFAU/tournament-scraper/internal/ingest"
	"github.com/JakeFAU/tournament-scraper/internal/publisher"
	gcppublisher "github.com/JakeFAU/tournament-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/tournament-scraper/internal/snapshot"
	"github.com/JakeFAU/tournament-scraper/internal/source"
	"github.com/JakeFAU/tournament-scraper/internal/source/chessarbiter"
	"github.com/JakeFAU/tournament-scraper/internal/source/chessmanager"
	"github.com/JakeFAU/tournament-scraper/internal/storage"
	gcsstorage "github.com/JakeFAU/tournament-scraper/internal/storage/gcs"
	localstorage "github.com/JakeFAU/tournament-scraper/internal/storage/local"
	"github.com/JakeFAU/tournament-scraper/internal/telemetry"
	"github.com/JakeFAU/tournament-scraper/internal/throttle"
)

// App holds the shared, long-lived services. It is built once per command
// invocation and closed when the command finishes.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  clock.Clock

	base      fetcher.Fetcher
	throttles []*throttle.Throttle
	sources   []source.Source
	resolver  *geo.Resolver
	snapshots *snapshot.Store
	mirror    *snapshot.Mirror
	publisher publisher.Publisher

	orchestrator *ingest.Orchestrator
	batch        *ingest.Batch

	storageClient *gstorage.Client
	pubsubClient  *pubsub.Client
	gcpPublisher  *gcppublisher.Publisher
	tracer        *sdktrace.TracerProvider
}

// Option overrides a default collaborator.
type Option func(*App)

// WithFetcher replaces the colly HTTP fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(a *App) { a.base = f }
}

// WithClock replaces the wall clock used to plan the mirror window.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p publisher.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// New wires every service described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	for _, opt := range opts {
		opt(a)
	}
	if a.base == nil {
		a.base = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.RequestTimeout(),
		})
	}

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracer = tp

	if err := setupGeo(a); err != nil {
		_ = a.closeInfrastructure()
		return nil, err
	}
	if err := setupSnapshots(ctx, a); err != nil {
		_ = a.closeInfrastructure()
		return nil, err
	}
	if err := setupPublisher(ctx, a); err != nil {
		_ = a.closeInfrastructure()
		return nil, err
	}
	setupSources(a)

	var ingestOpts []ingest.Option
	if a.publisher != nil {
		ingestOpts = append(ingestOpts, ingest.WithPublisher(a.publisher, cfg.PubSub.TopicName))
	}
	a.orchestrator = ingest.New(a.sources, a.resolver, a.snapshots, logger, ingestOpts...)

	var mirror ingest.Mirror
	if a.mirror != nil {
		mirror = a.mirror
	}
	a.batch = ingest.NewBatch(a.orchestrator, mirror, a.clock, logger)

	logger.Info("application initialized",
		zap.Int("sources", len(a.sources)),
		zap.Int("gazetteer_cities", a.resolver.Len()),
		zap.String("snapshot_dir", cfg.Snapshot.Dir),
		zap.Bool("mirror", a.mirror != nil),
		zap.Bool("gcs", a.storageClient != nil),
		zap.Bool("pubsub", a.publisher != nil),
	)
	return a, nil
}

func (a *App) gate(name string, gc config.GateConfig) fetcher.Fetcher {
	t := throttle.New(throttle.Config{
		Name:              name,
		MaxConcurrent:     gc.MaxConcurrent,
		Timeout:           a.cfg.RequestTimeout(),
		RequestsPerSecond: gc.RequestsPerSecond,
		Burst:             gc.Burst,
	})
	a.throttles = append(a.throttles, t)
	return throttle.NewFetcher(a.base, t)
}

func setupGeo(a *App) error {
	var (
		cities []geo.City
		err    error
	)
	if a.cfg.Geo.File != "" {
		cities, err = geo.LoadGazetteerFile(a.cfg.Geo.File)
	} else {
		cities, err = geo.DefaultGazetteer()
	}
	if err != nil {
		return fmt.Errorf("gazetteer init failed: %w", err)
	}
	a.resolver = geo.NewResolver(cities, a.logger.Named("geo"))
	return nil
}

func setupSnapshots(ctx context.Context, a *App) error {
	local, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Snapshot.Dir})
	if err != nil {
		return fmt.Errorf("snapshot dir init failed: %w", err)
	}
	var blobs storage.BlobStore = local
	if a.cfg.Snapshot.GCSBucket != "" {
		a.storageClient, err = gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("storage client init failed: %w", err)
		}
		remote, err := gcsstorage.New(a.storageClient, gcsstorage.Config{
			Bucket: a.cfg.Snapshot.GCSBucket,
			Prefix: a.cfg.Snapshot.GCSPrefix,
		})
		if err != nil {
			return fmt.Errorf("gcs store init failed: %w", err)
		}
		blobs = storage.NewTee(local, remote)
		a.logger.Info("publishing snapshots to GCS",
			zap.String("bucket", a.cfg.Snapshot.GCSBucket),
			zap.String("prefix", a.cfg.Snapshot.GCSPrefix),
		)
	}
	a.snapshots = snapshot.NewStore(blobs, a.logger.Named("snapshot"))

	if a.cfg.Mirror.BaseURL != "" {
		a.mirror = snapshot.NewMirror(
			a.cfg.Mirror.BaseURL,
			a.gate("mirror", a.cfg.Throttle.Mirror),
			a.snapshots,
			a.logger.Named("mirror"),
		)
	}
	return nil
}

func setupPublisher(ctx context.Context, a *App) error {
	if a.publisher != nil {
		return nil
	}
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Debug("no Pub/Sub topic configured, notifications disabled")
		return nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.gcpPublisher = gcppublisher.New(a.pubsubClient)
	a.publisher = a.gcpPublisher
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func setupSources(a *App) {
	if sc := a.cfg.Sources.ChessArbiter; sc.Enabled {
		a.sources = append(a.sources, chessarbiter.New(
			a.gate(chessarbiter.Name, a.cfg.Throttle.ChessArbiter),
			a.logger.Named(chessarbiter.Name),
			chessarbiter.WithBaseURL(sc.BaseURL),
		))
	}
	if sc := a.cfg.Sources.ChessManager; sc.Enabled {
		opts := []chessmanager.Option{chessmanager.WithBaseURL(sc.BaseURL)}
		if sc.Country != "" {
			opts = append(opts, chessmanager.WithCountry(sc.Country))
		}
		a.sources = append(a.sources, chessmanager.New(
			a.gate(chessmanager.Name, a.cfg.Throttle.ChessManager),
			a.logger.Named(chessmanager.Name),
			opts...,
		))
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Orchestrator returns the single-month ingestion service.
func (a *App) Orchestrator() *ingest.Orchestrator { return a.orchestrator }

// Batch returns the batch driver.
func (a *App) Batch() *ingest.Batch { return a.batch }

// Resolver returns the city resolver.
func (a *App) Resolver() *geo.Resolver { return a.resolver }

// Snapshots returns the snapshot store.
func (a *App) Snapshots() *snapshot.Store { return a.snapshots }

// Throttles returns every request gate in creation order.
func (a *App) Throttles() []*throttle.Throttle { return a.throttles }

// Plan converts the batch configuration into an ingest.Plan.
func (a *App) Plan() ingest.Plan {
	plan := ingest.Plan{
		MonthsAhead:  a.cfg.Batch.MonthsAhead,
		MonthsBack:   a.cfg.Batch.MonthsBack,
		SkipExisting: a.cfg.Batch.SkipExisting,
	}
	plan.Start, plan.End, plan.Scrape = a.cfg.Batch.ScrapeRange()
	return plan
}

// Close releases cloud clients and flushes the logger.
func (a *App) Close() error {
	a.logger.Debug("shutting down application services")
	err := a.closeInfrastructure()
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	return err
}

func (a *App) closeInfrastructure() error {
	var errs []error
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage client: %w", err))
		}
	}
	return errors.Join(errs...)
}
