// Package cmd defines the CLI commands for the tournament-scraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/api"
	"github.com/JakeFAU/tournament-scraper/internal/app"
	"github.com/JakeFAU/tournament-scraper/internal/config"
	"github.com/JakeFAU/tournament-scraper/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

type rootOptions struct {
	configPath  string
	metricsAddr string
}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return app.New(ctx, cfg, logger)
}

// session holds what PersistentPreRunE builds so it can be released even when
// a command fails and cobra skips its post-run hooks.
type session struct {
	app        *app.App
	server     *api.Server
	serverAddr string

	once   sync.Once
	closed bool
	err    error
}

// Close stops the admin server and closes the app. It is safe to call more
// than once.
func (s *session) Close() error {
	s.once.Do(func() {
		s.closed = true
		if s.app == nil {
			return
		}
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.server.Shutdown(ctx); err != nil {
				s.app.Logger().Warn("metrics server shutdown failed", zap.Error(err))
			}
		}
		s.err = s.app.Close()
	})
	return s.err
}

// newRootCmd creates and configures the root command. The returned session
// must be closed once the command has run.
func newRootCmd() (*cobra.Command, *session) {
	opts := &rootOptions{}
	sess := &session{}

	cmd := &cobra.Command{
		Use:   "tournament-scraper",
		Short: "Scrapes chess tournament listings into monthly JSON snapshots.",
		Long: `tournament-scraper collects chess tournaments from ChessArbiter and
ChessManager, resolves their cities to coordinates, and writes one
tournaments-<year>-<month>.json file per month.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			sess.app = appInstance
			if opts.metricsAddr != "" {
				sess.server = api.NewServer(appInstance.Throttles(), appInstance.Resolver(), appInstance.Logger().Named("http"))
				addr, err := sess.server.Start(opts.metricsAddr)
				if err != nil {
					sess.server = nil
					return fmt.Errorf("start metrics server: %w", err)
				}
				sess.serverAddr = addr
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "",
		"serve /metrics and /healthz on this address while the command runs")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newGeocodeCmd())
	return cmd, sess
}

// executeRoot runs root and always releases sess, reporting a close failure
// only when the command itself succeeded.
func executeRoot(ctx context.Context, root *cobra.Command, sess *session) (err error) {
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return root.ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root, sess := newRootCmd()
	if err := executeRoot(ctx, root, sess); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
