package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/molscene/internal/application/scene"
	"github.com/turtacn/molscene/internal/config"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/molscene/internal/interfaces/http"
	"github.com/turtacn/molscene/internal/interfaces/http/handlers"
	"github.com/turtacn/molscene/internal/interfaces/http/middleware"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd runs a long-lived cache node: it applies invalidations
// published by peers, serves probes, metrics and the scene control API, and
// follows ribbon configuration changes in the config file.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a cache node with metrics, probes and peer invalidation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address of the HTTP surface")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, addr string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	logger := cliCtx.Logger

	cfg := *cliCtx.Config
	cfg.Metrics.Enabled = true
	rt, err := NewRuntime(&cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.StartSubscriber(ctx); err != nil {
		return err
	}

	if cliCtx.ConfigPath != "" {
		err := config.Watch(cliCtx.ConfigPath, reloadRibbon(ctx, rt.Service, logger), func(err error) {
			logger.WithError(err).Warn("config reload failed")
		})
		if err != nil {
			return err
		}
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		SceneHandler:     handlers.NewSceneHandler(rt.Service, logger.Named("http")),
		HealthHandler:    handlers.NewHealthHandler(Version, rt.HealthCheckers()...),
		Logger:           logger.Named("http"),
		LoggingConfig:    middleware.DefaultLoggingConfig(),
		MetricsCollector: rt.Collector,
	})
	server := httpapi.NewServer(addr, router, logger.Named("http"))
	if err := server.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve() }()
	logger.Info("molscene node started",
		logging.String("addr", server.Addr()),
		logging.String("source", rt.Source()),
		logging.String(logging.FieldForm, cfg.Render.RibbonForm))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("molscene node stopping")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// reloadRibbon applies the ribbon section of a reloaded config to svc.
func reloadRibbon(ctx context.Context, svc scene.Service, logger logging.Logger) func(*config.Config) {
	return func(next *config.Config) {
		rc, err := next.RibbonConfig()
		if err == nil {
			err = svc.SetRibbonConfig(ctx, rc)
		}
		if err != nil {
			logger.WithError(err).Warn("reloaded ribbon configuration rejected",
				logging.String(logging.FieldForm, next.Render.RibbonForm))
		}
	}
}
