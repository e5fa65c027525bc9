package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"historyquiz"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := historyquiz.LoadConfig()
	log := historyquiz.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	historyquiz.RegisterMetrics(prometheus.DefaultRegisterer)
	prometheus.MustRegister(httpRequests, httpDuration)

	ctx := context.Background()

	store, closeStore, err := historyquiz.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open store")
	}
	defer closeStore()

	if err := historyquiz.InitFonts(cfg.FontDir); err != nil {
		log.Warn().Err(err).Str("dir", cfg.FontDir).Msg("PDF export unavailable until fonts are installed")
	}

	server := NewServer(cfg, store, historyquiz.NewQuestionMaker(cfg.LogDir))

	// No write timeout: generation requests can run for minutes.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
