package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/config"
	"github.com/ahouse2/co-counsel-nexus/internal/logger"
	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/internal/tracing"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootOptions holds the global flags and the process state set up before
// every subcommand
type rootOptions struct {
	cfgFile     string
	logLevel    string
	metricsAddr string

	cfg        *config.Config
	log        *logger.Logger
	metricsSrv *http.Server
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cocounsel",
		Short: "Co-Counsel - legal research session orchestration",
		Long: `Co-Counsel routes a case question to a team of agents (strategy, ingestion,
research, drafting, QA) and runs them as one orchestration session, with
retries, plan revisions and per-case memory.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: opts.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.cocounsel/cocounsel.json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newGraphCmd(opts))
	cmd.AddCommand(newThreadsCmd(opts))

	return cmd
}

// Execute runs the command tree with ctx
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

func (o *rootOptions) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	l, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.cfg = cfg
	o.log = l

	if err := tracing.InitOpenTelemetry(tracing.DefaultServiceName, 1); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := observability.InitAuditLogger(cfg.AuditFile()); err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	if o.metricsAddr != "" {
		if err := o.serveMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (o *rootOptions) serveMetrics() error {
	ln, err := net.Listen("tcp", o.metricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", o.metricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	o.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := o.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	o.log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return nil
}

func (o *rootOptions) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.metricsSrv != nil {
		_ = o.metricsSrv.Shutdown(ctx)
		o.metricsSrv = nil
	}
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		o.log.Error().Err(err).Msg("Failed to flush traces")
	}
	_ = observability.GetAuditLogger().Close()
	if o.log != nil {
		return o.log.Close()
	}
	return nil
}
