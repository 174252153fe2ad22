// cliclient is a CLI viewer for the deep zoom server.
// It connects to the server's websocket stream and saves the received frames as PNG files.

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/coder/websocket"
)

// main is the entry point for the CLI client.
// It runs the client logic and logs any fatal errors.
func main() {
	log.Printf("Starting CLI client...")
	if err := run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// run connects to the server, receives frames and saves them as PNG files.
// Returns an error if any step fails.
func run() error {
	url := flag.String("url", "ws://localhost:8080/ws", "websocket url of the deep zoom server")
	frames := flag.Int("frames", 1, "number of frames to save")
	dir := flag.String("dir", ".", "output directory")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Step 1: Connect to the deep zoom server
	log.Printf("Connecting to deep zoom server at %s...", *url)
	c, _, err := websocket.Dial(ctx, *url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer c.CloseNow()
	// Frames of a large viewport easily exceed the default 32KiB read limit.
	c.SetReadLimit(64 << 20)

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	// Step 2: Receive frames and save them
	for i := range *frames {
		filename := filepath.Join(*dir, fmt.Sprintf("frame_%04d.png", i))
		if err := saveFrame(ctx, c, filename); err != nil {
			return err
		}
		log.Printf("Frame saved to %q", filename)
	}

	return c.Close(websocket.StatusNormalClosure, "")
}

// saveFrame reads one frame from c and writes it to filename.
func saveFrame(ctx context.Context, c *websocket.Conn, filename string) error {
	typ, b, err := c.Read(ctx)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	if typ != websocket.MessageBinary {
		return fmt.Errorf("unexpected %v message", typ)
	}
	// Decode before saving so a truncated frame is never written out.
	if _, err := png.DecodeConfig(bytes.NewReader(b)); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if err := os.WriteFile(filename, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}
