// cmd/inkpassd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkpass/inkpass/config"
	"github.com/inkpass/inkpass/credentials"
	"github.com/inkpass/inkpass/observability"
	"github.com/inkpass/inkpass/passes"
	"github.com/inkpass/inkpass/pending"
	"github.com/inkpass/inkpass/server"
)

// Version information (set via ldflags during build)
var (
	version = "0.0.0-dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "inkpassd",
	Short: "Signed wallet pass generation service",
	Long: `inkpassd turns a short note, a color, and an optional drawing into a
signed, installable wallet pass bundle served over HTTP.

Configuration is environment-driven; see the repository README.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLogger(os.Stdout, observability.ParseLogLevel(cfg.LogLevel))
	logger.Info("Starting inkpassd {Version} ({Commit})", version, commit)

	tp, err := observability.SetupTracing(ctx, observability.TracerConfig{
		ServiceName:    "inkpassd",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.TraceExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed: {Error}", err)
		}
	}()

	creds, err := credentials.LoadFromFiles(cfg.CertificatePath, cfg.CertificatePassword, cfg.IntermediateCertPath)
	if err != nil {
		return fmt.Errorf("load signing credentials: %w", err)
	}
	logger.Info("Signing as {Subject}", creds.Certificate.Subject.CommonName)

	tmpl, err := passes.LoadTemplate(cfg.TemplateDir)
	if err != nil {
		return fmt.Errorf("load pass template: %w", err)
	}

	generator := passes.NewGenerator(creds, tmpl,
		passes.WithLogger(logger),
		passes.WithMaxDrawingBytes(cfg.MaxDrawingBytes),
		passes.WithPendingStore(pending.NewStore[passes.Request](cfg.PendingTokenTTL)),
	)

	return server.NewServer(generator, cfg, logger).Start(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
