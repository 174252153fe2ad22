// render renders frames of a deep zoom locally and saves them as PNG files.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	mandel "github.com/marben/deepzoom"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %+v", err)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "YAML config file (defaults when empty)")
	out := flag.String("out", ".", "output directory")
	frames := flag.Int("frames", 1, "number of frames to render")
	zoom := flag.Float64("zoom", 0, "starting zoom, overrides the config when > 0")
	preset := flag.String("preset", "", "center preset, overrides the config; one of "+fmt.Sprint(mandel.PresetNames()))
	flag.Parse()

	cfg := mandel.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = mandel.LoadConfig(*cfgPath); err != nil {
			return err
		}
	}
	if *zoom > 0 {
		cfg.Zoom.Start = *zoom
	}
	if *preset != "" {
		cfg.Center = mandel.CenterConfig{Preset: *preset}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	genCfg, err := cfg.GeneratorConfig()
	if err != nil {
		return err
	}
	generator, err := mandel.NewGenerator(genCfg, logger)
	if err != nil {
		return fmt.Errorf("mandel.NewGenerator: %w", err)
	}
	view, err := cfg.Viewport()
	if err != nil {
		return err
	}
	// Frames are rendered back to back; there is no display to pace them.
	zoomer, err := mandel.NewZoomer(generator, view, cfg.Zoom.Increment, 0, logger)
	if err != nil {
		return fmt.Errorf("mandel.NewZoomer: %w", err)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	for range *frames {
		f, err := zoomer.Next(ctx)
		if err != nil {
			return err
		}
		filename := filepath.Join(*out, fmt.Sprintf("frame_%04d.png", f.Seq))
		if err := savePNG(filename, f.Image); err != nil {
			return err
		}
		log.Printf("frame %d (zoom %g) rendered in %s, saved to %q", f.Seq, f.Zoom, f.Elapsed, filename)
	}
	return nil
}

func savePNG(filename string, img image.Image) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return f.Close()
}
