package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/oppfeed/api"
	"github.com/pevans/oppfeed/config"
	"github.com/pevans/oppfeed/dataset"
	"github.com/pevans/oppfeed/logging"
)

func handleServe(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.API.ListenAddr, "Listen address")
	fs.Parse(args)

	if logging.ParseLevel(cfg.Log.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewAPIServer(dataset.NewLayout(cfg.DataDir))
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "err", err)
		}
	}()

	slog.Info("Starting API server", "addr", *addr, "data_dir", cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fail("server failed: %v", err)
	}
	slog.Info("Server stopped")
}
