package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phaiel/weaveclassify/internal/config"
	"github.com/phaiel/weaveclassify/internal/logging"
	"github.com/phaiel/weaveclassify/internal/metrics"
	"github.com/phaiel/weaveclassify/pkg/classifier"
	"github.com/phaiel/weaveclassify/pkg/embedding"
	"github.com/phaiel/weaveclassify/pkg/gateway"
	"github.com/phaiel/weaveclassify/pkg/loader"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the classification HTTP service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("building embedding provider: %w", err)
	}

	c := classifier.New(provider, classifier.WithDefaults(cfg.MaxAlternatives, cfg.ConfidenceThreshold))

	reg := metrics.NewRegistry()

	var l *loader.Loader
	if cfg.ArtifactPath != "" {
		source, err := buildArtifactSource(cfg)
		if err != nil {
			return fmt.Errorf("building artifact source: %w", err)
		}
		l = loader.New(source, provider, c)

		if err := l.Reload(context.Background()); err != nil {
			reg.ObserveReload("failure")
			logger.Error("initial pattern load failed", zap.Error(err))
		} else {
			reg.ObserveReload("success")
		}
	} else {
		l = loader.New(noopArtifactSource{}, provider, c)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchArtifact && cfg.ArtifactPath != "" {
		watcher := loader.NewWatcher(l, cfg.ArtifactPath, loader.DefaultDebounceWindow)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	gw := gateway.New(c, l, logger, reg, cfg.RequestTimeout, cfg.MaxInflight)
	mux := http.NewServeMux()
	mux.Handle("/", gw.Router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.BindPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildProvider(cfg *config.Config) (embedding.Provider, error) {
	if cfg.ModelName == "static" || cfg.ModelName == "" {
		return embedding.NewStaticProvider(cfg.VectorDim), nil
	}
	return embedding.NewOllamaProvider(embedding.OllamaConfig{
		Host:      cfg.ModelHost,
		Model:     cfg.ModelName,
		Dimension: cfg.VectorDim,
	})
}

func buildArtifactSource(cfg *config.Config) (loader.ArtifactSource, error) {
	switch cfg.ArtifactFormat {
	case "sqlite":
		return loader.SQLiteArtifactSource{Path: cfg.ArtifactPath}, nil
	case "json", "":
		return loader.JSONArtifactSource{Path: cfg.ArtifactPath}, nil
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", cfg.ArtifactFormat)
	}
}

// noopArtifactSource backs /reload-patterns when no artifact path is
// configured yet, so the route responds with a clear load failure instead
// of a nil-pointer panic.
type noopArtifactSource struct{}

func (noopArtifactSource) Load(ctx context.Context) (loader.RawArtifact, error) {
	return loader.RawArtifact{}, fmt.Errorf("no artifact path configured")
}
