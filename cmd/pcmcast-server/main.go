// Command pcmcast-server streams PCM audio decoded from a WAV file to any
// number of connected TCP clients.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drgolem/pcmcast/internal/audiosource"
	"github.com/drgolem/pcmcast/internal/logx"
	"github.com/drgolem/pcmcast/internal/metrics"
	"github.com/drgolem/pcmcast/internal/pacing"
	"github.com/drgolem/pcmcast/internal/transport"
)

var (
	wavPath     string
	port        int
	targetRate  int
	metricsAddr string
	logLevel    string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "pcmcast-server",
	Short: "Broadcast a WAV file as a paced PCM stream over TCP",
	Long: `pcmcast-server reads a WAV file, normalizes it to mono 16-bit PCM, and
broadcasts it over TCP to every connected client, pacing delivery to
roughly real time.`,
	RunE: runServer,
}

func init() {
	rootCmd.Flags().StringVar(&wavPath, "wav", "", "Path to the WAV file to stream (required)")
	rootCmd.Flags().IntVar(&port, "port", 8080, "TCP port to bind on 0.0.0.0")
	rootCmd.Flags().IntVar(&targetRate, "resample", 0, "Resample the source to this rate before streaming (0 keeps the file's own rate)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (empty disables metrics)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", envOr("PCMCAST_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", envOr("PCMCAST_LOG_FORMAT", "text"), "Log format: text or json")
	_ = rootCmd.MarkFlagRequired("wav")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := logx.New(logFormat, logx.ParseLevel(logLevel), os.Stderr)
	logx.Set(logger)

	if _, err := os.Stat(wavPath); err != nil {
		slog.Error("WAV file not accessible", "path", wavPath, "error", err)
		return fmt.Errorf("stat wav file: %w", err)
	}

	src, err := audiosource.OpenWav(wavPath, targetRate)
	if err != nil {
		slog.Error("failed to open audio source", "error", err)
		return err
	}
	defer src.Close()

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	srv := transport.NewServer(addr)
	if err := srv.Start(); err != nil {
		slog.Error("failed to start transport server", "error", err)
		return err
	}
	defer srv.Stop()

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = metrics.StartHTTP(metricsAddr)
		defer metricsSrv.Close()
	}

	slog.Info("streaming", "wav", wavPath, "addr", addr,
		"channels", src.Spec().Channels,
		"sample_rate", src.Spec().SampleRate)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		pacing.Run(src, srv)
		close(done)
	}()

	select {
	case <-done:
		slog.Info("source exhausted, continuing to serve until interrupted")
		<-sigChan
	case <-sigChan:
		slog.Info("interrupted")
	}

	slog.Info("shutdown summary", "clients_remaining", srv.ClientCount())
	return nil
}
