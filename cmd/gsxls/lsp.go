package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/grindlemire/gsxls/pkg/lsp"
	"github.com/grindlemire/gsxls/pkg/lsp/config"
	"github.com/grindlemire/gsxls/pkg/lsp/delegate"
	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/endpoint"
	"github.com/grindlemire/gsxls/pkg/lsp/foreign"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
)

const shutdownTimeout = 5 * time.Second

type lspOptions struct {
	configPath  string
	logPath     string
	logLevel    string
	metricsAddr string
}

func newLSPCmd() *cobra.Command {
	var opts lspOptions
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the language server on stdio (for editor integration)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a gsxls.yaml configuration file")
	cmd.Flags().StringVar(&opts.logPath, "log", "", "Path to log file for debugging")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(opts lspOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logPath != "" {
		cfg.Log.File = opts.logPath
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runLSP(ctx context.Context, opts lspOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Set up logging if requested
	if cfg.Log.File != "" {
		logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}
	if err := setLevel(cfg.Log.Level); err != nil {
		return err
	}

	watcher := config.NewWatcher(opts.configPath, cfg, func(c *config.Config) {
		if opts.logLevel != "" {
			return
		}
		if err := setLevel(c.Log.Level); err != nil {
			log.Error("config", "Keeping log level: %v", err)
		}
	})
	if err := watcher.Start(ctx); err != nil {
		log.Error("config", "Not watching %s: %v", opts.configPath, err)
	}
	defer watcher.Close()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr)
		defer srv.Close()
	}

	store := document.NewStore()
	dispatcher := delegate.NewDispatcher()
	deps := delegate.Deps{
		Store:      store,
		Dispatcher: dispatcher,
		Remapper:   delegate.NewRemapper(store),
	}

	var (
		poolMu sync.Mutex
		pool   *foreign.Pool
	)
	// The processes are bound to the command's context, not the server loop's,
	// so they are still alive for the shutdown handshake after Run returns.
	startForeign := func(_ context.Context, rootURI string) (lsp.DocumentSync, error) {
		// A server that fails to start leaves its language unregistered;
		// the others keep serving.
		p, err := foreign.StartPool(ctx, rootURI, cfg.Specs())
		for _, s := range p.Servers() {
			dispatcher.Register(s.Language(), s)
			log.Server("%s language server ready", s.Language())
		}
		poolMu.Lock()
		pool = p
		poolMu.Unlock()
		return p, err
	}

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.Options{
		Store:      store,
		Transpiler: document.NewArtifactTranspiler(),
		Handlers: []endpoint.Handler{
			endpoint.NewImplementation(deps, watcher),
			endpoint.NewDefinition(deps, watcher),
			endpoint.NewOnTypeFormatting(deps, watcher, watcher),
		},
		StartForeign:   startForeign,
		WatchArtifacts: true,
		Version:        version,
	})

	runErr := server.Run(ctx)

	poolMu.Lock()
	defer poolMu.Unlock()
	if pool != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.Error("foreign", "Stopping language servers: %v", err)
		}
	}
	return runErr
}

func setLevel(level string) error {
	if level == "" {
		return nil
	}
	return log.SetLevel(level)
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics", "Metrics server stopped: %v", err)
		}
	}()
	log.Server("Serving metrics on %s/metrics", addr)
	return srv
}
