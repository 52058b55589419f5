package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivritype/tirgum/internal/gemini"
	"github.com/ivritype/tirgum/internal/pipeline"
	"github.com/ivritype/tirgum/internal/server"
	"github.com/ivritype/tirgum/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the translation API",
	Long: `Start an HTTP server that provides REST API endpoints for page translation.

The server provides the following endpoints:
  POST /sessions              - Upload pages and start a translation session
  GET  /sessions/{id}         - Session status with per-page detail
  POST /sessions/{id}/cancel  - Cancel a running session
  POST /sessions/{id}/pages/{idx}/cancel - Cancel a single page
  GET  /sessions/{id}/export  - Download translated pages as a ZIP archive
  GET  /sessions/{id}/ws      - WebSocket progress stream
  GET  /healthz               - Health check endpoint
  GET  /metrics               - Prometheus metrics

Examples:
  tirgum serve
  tirgum serve --port 8080
  tirgum serve --host 0.0.0.0 --port 3000 --mode batch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		mode := cfg.Pipeline.Mode
		if cmd.Flags().Changed("mode") {
			mode, _ = cmd.Flags().GetString("mode")
		}
		if mode != string(session.ModeSync) && mode != string(session.ModeBatch) {
			return fmt.Errorf("invalid mode: %s (must be sync or batch)", mode)
		}

		verify := cfg.Pipeline.Verify
		if cmd.Flags().Changed("verify") {
			verify, _ = cmd.Flags().GetBool("verify")
		}

		pollInterval := cfg.Batch.PollIntervalSec
		if cmd.Flags().Changed("poll-interval") {
			pollInterval, _ = cmd.Flags().GetInt("poll-interval")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		geminiCfg, err := cfg.GeminiClientConfig()
		if err != nil {
			return err
		}
		client, err := gemini.NewClient(ctx, geminiCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize capability client: %w", err)
		}

		pl := pipeline.New(client, pipeline.Options{
			Concurrency:      cfg.Pipeline.Concurrency,
			Verify:           verify,
			VerifyRetryLimit: cfg.Pipeline.VerifyRetryLimit,
			StrictVerify:     cfg.Pipeline.StrictVerify,
			Progress:         pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug),
		})

		store := session.NewStore()
		apiServer := server.NewServer(pl, store, server.Config{
			Host:         host,
			Port:         port,
			CORSOrigin:   corsOrigin,
			MaxUploadMB:  int64(maxUploadSize),
			TimeoutSec:   timeout,
			Mode:         mode,
			Verify:       verify,
			MaxDistance:  cfg.Dedupe.MaxDistance,
			PollInterval: time.Duration(pollInterval) * time.Second,
		})
		defer func() { _ = apiServer.Close() }()

		mux := http.NewServeMux()
		apiServer.SetupRoutes(mux)
		mux.Handle("/metrics", promhttp.Handler())

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting translation server", "host", host, "port", port, "mode", mode)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Cancelling running sessions")
		if err := apiServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "host to bind the server to")
	serveCmd.Flags().IntP("port", "p", 8080, "port to bind the server to")
	serveCmd.Flags().String("cors-origin", "*", "allowed CORS origin")
	serveCmd.Flags().Int("max-upload-size", 200, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 300, "session processing timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	serveCmd.Flags().String("mode", "sync", "default processing mode (sync or batch)")
	serveCmd.Flags().Bool("verify", false, "verify translations before editing")
	serveCmd.Flags().Int("poll-interval", 30, "seconds between remote job status polls in batch mode")
}
