// Package serve wires the journal server's dependencies together and
// starts the HTTP facade alongside the job runner, mirroring the
// teacher's cmd/realtime Command(ctx) shape.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jrnl/voicejournal/internal/api"
	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/jrnl/voicejournal/internal/logging"
	"github.com/jrnl/voicejournal/internal/observability/metrics"
	"github.com/jrnl/voicejournal/internal/runner"
	"github.com/jrnl/voicejournal/internal/securefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Command creates the "serve" subcommand that starts the journal server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the journal server",
		Long:  "Starts the HTTP facade and the background job runner that drives entries through the pipeline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Server.ListenAddr, "listen", viper.GetString("server.listenaddr"), "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&settings.Server.VaultRoot, "vault", viper.GetString("server.vaultroot"), "Obsidian-style vault root directory")
	cmd.Flags().StringVar(&settings.Server.DBPath, "db", viper.GetString("server.dbpath"), "path to the SQLite database file")

	return viper.BindPFlags(cmd.Flags())
}

var serviceLogger = logging.ForService("serve")

func run(ctx context.Context, settings *conf.Settings) error {
	if err := logging.Init(logging.Config{
		Level:      settings.Log.Level,
		FilePath:   settings.Log.FilePath,
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAgeDays,
		Compress:   settings.Log.Compress,
		Console:    settings.Log.Console,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()

	store, err := datastore.OpenFromSettings(settings)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSettingsSeeded(ctx, settings); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	audioDir := filepath.Join(settings.Server.VaultRoot, "journal", "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return fmt.Errorf("create vault audio directory: %w", err)
	}
	audioFS, err := securefs.New(audioDir)
	if err != nil {
		return fmt.Errorf("init audio sandbox: %w", err)
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	rn := runner.New(store, runner.Config{
		WorkerID: workerID(),
		Conf:     *settings,
	}, runner.RealClock{})

	runnerCtx, cancelRunner := context.WithCancel(ctx)
	defer cancelRunner()
	go rn.Run(runnerCtx)

	controller := api.New(store, rn, settings, audioFS, m)

	go func() {
		if err := controller.Start(settings.Server.ListenAddr); err != nil {
			serviceLogger.Error("http server stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	serviceLogger.Info("shutting down")
	cancelRunner()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return controller.Shutdown(shutdownCtx)
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "journal"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
