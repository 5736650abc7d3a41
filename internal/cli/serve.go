package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vvka-141/polingest/internal/config"
	"github.com/vvka-141/polingest/internal/ingest"
	"github.com/vvka-141/polingest/internal/logging"
	"github.com/vvka-141/polingest/internal/metrics"
	"github.com/vvka-141/polingest/internal/server"
	"github.com/vvka-141/polingest/internal/store"
	"github.com/vvka-141/polingest/internal/worker"
	"github.com/vvka-141/polingest/pkg/polingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept uploads over HTTP",
	Long: `Run the HTTP server.

Routes:
  POST /upload           multipart form field "file", .csv or .xlsx
  GET  /policy?username= the first user matching that first name, with policies
  GET  /aggregated-policies  policies grouped per user
  GET  /health           liveness and store reachability
  GET  /metrics          prometheus collectors (path configurable)

Server settings come from the server section of polingest.yaml and the
POLINGEST_* environment variables; --addr and --workers override both.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveFlags struct {
	store    storeFlags
	addr     string
	workers  int
	userType string
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags.store.register(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "",
		"Listen address (env POLINGEST_ADDR, default "+polingest.DefaultListenAddress+")")
	serveCmd.Flags().IntVar(&serveFlags.workers, "workers", 0,
		"Concurrent ingestion runs (env POLINGEST_WORKERS)")
	serveCmd.Flags().StringVar(&serveFlags.userType, "default-user-type", polingest.DefaultUserType,
		"userType assigned to users whose userType column is empty")
}

func runServe(cmd *cobra.Command, args []string) error {
	storeCfg, project, err := serveFlags.store.resolve(cmd)
	if err != nil {
		return err
	}
	settings, err := config.ResolveServer(project.Server)
	if err != nil {
		return err
	}
	if serveFlags.addr != "" {
		settings.Addr = serveFlags.addr
	}
	if serveFlags.workers > 0 {
		settings.Workers = serveFlags.workers
	}

	format, err := logging.ParseFormat(settings.LogFormat)
	if err != nil {
		return fmt.Errorf("%w: %w", polingest.ErrInvalidConfig, err)
	}
	logger, err := newLogger(cmd, format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(settings.UploadDir, 0o750); err != nil {
		return fmt.Errorf("create upload dir %s: %w: %w", settings.UploadDir, polingest.ErrInvalidConfig, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, storeCfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	collector := metrics.New()
	pipeline := ingest.New(s, logger,
		ingest.WithObserver(collector),
		ingest.WithDefaultUserType(serveFlags.userType))
	pool := worker.NewPool(pipeline, settings.Workers, logger)
	defer pool.Close()

	logger.Info("Serving with %d worker(s), store %s, uploads in %s", settings.Workers, storeCfg.Driver, settings.UploadDir)
	return server.New(settings, pool, s, collector.Handler(), logger).ListenAndServe(ctx)
}
