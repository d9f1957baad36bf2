package main

import (
	"context"
	"net/http"
	"time"

	"github.com/RichardoC/neurosci-ai/internal/api"
	"github.com/RichardoC/neurosci-ai/internal/config"
	"github.com/RichardoC/neurosci-ai/internal/llm"
	"github.com/RichardoC/neurosci-ai/internal/metrics"
	"github.com/RichardoC/neurosci-ai/internal/uploads"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat ingestion endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			handler, err := newServerHandler(cfg, logger)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg.Addr, handler, logger)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyAddr, ":8100", "listen address")
	flags.String(config.KeyUploadDir, "", "directory for uploaded payloads (default: system temp dir)")
	flags.Bool(config.KeyKeep, true, "keep uploaded payloads on disk")
	mustBind(v, flags, config.KeyAddr, config.KeyUploadDir, config.KeyKeep)
	return cmd
}

func newServerHandler(cfg *config.Server, logger *zap.Logger) (http.Handler, error) {
	gateway, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize completion gateway")
	}

	var store uploads.Store = uploads.Discard{}
	if cfg.KeepUploads {
		dirStore := uploads.NewDirStore(cfg.UploadDir)
		logger.Info("Keeping uploads", zap.String("dir", dirStore.Dir()))
		store = dirStore
	}

	exporter := metrics.NewExporter()
	handler := api.NewHandler(gateway, store, exporter, logger)
	return api.NewRouter(handler, exporter.Handler(), logger), nil
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "failed to start server")
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down server")
	}
	return nil
}
