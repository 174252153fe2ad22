package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mandel "github.com/marben/deepzoom"
	"github.com/marben/deepzoom/internal/archive"
)

// main is the entry point for the deep zoom server.
// The server renders the zoom itself and streams every frame to connected viewers.
func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %+v", err)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "YAML config file (defaults when empty)")
	flag.Parse()

	cfg := mandel.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = mandel.LoadConfig(*cfgPath); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Step 1: the frame generator and the zoom driving it
	genCfg, err := cfg.GeneratorConfig()
	if err != nil {
		return fmt.Errorf("generator config: %w", err)
	}
	generator, err := mandel.NewGenerator(genCfg, logger)
	if err != nil {
		return fmt.Errorf("mandel.NewGenerator: %w", err)
	}
	view, err := cfg.Viewport()
	if err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	zoomer, err := mandel.NewZoomer(generator, view, cfg.Zoom.Increment, cfg.Zoom.Interval, logger)
	if err != nil {
		return fmt.Errorf("mandel.NewZoomer: %w", err)
	}
	logger.Info("zoom configured", "center", view.Center.String(), "width", view.Width, "height", view.Height,
		"iterations", view.Iterations, "increment", cfg.Zoom.Increment)

	// Step 2: viewers get every frame through the hub, the archive keeps them
	hub := newFrameHub(logger)
	sinks := multiSink{hub}

	web := &webServer{hub: hub, gen: generator, logger: logger}
	if cfg.Archive.Enabled {
		store, err := archive.Open(ctx, cfg.Archive.DBPath, cfg.Archive.ThumbWidth)
		if err != nil {
			return fmt.Errorf("archive.Open: %w", err)
		}
		defer store.Close()

		sess, err := store.NewSession(ctx, view)
		if err != nil {
			return fmt.Errorf("archive session: %w", err)
		}
		logger.Info("archiving frames", "db", cfg.Archive.DBPath, "session", sess.ID)
		web.archive, web.session = store, sess.ID
		sinks = append(sinks, archive.Recorder{Store: store, Session: sess.ID})
	}

	// Step 3: http server with websocket endpoint, latest frame and archive
	srv := newHTTPServer(cfg.Server.Listen, web.router(cfg.Server.StaticDir))
	go func() {
		logger.Info("listening", "addr", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("httpServer", "error", err)
			cancel()
		}
	}()

	// Step 4: zoom until interrupted
	runErr := zoomer.Run(ctx, sinks)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	return runErr
}
