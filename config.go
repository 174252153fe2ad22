package mandel

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full deepzoom configuration.
type Config struct {
	Frame    FrameConfig    `yaml:"frame"`
	Center   CenterConfig   `yaml:"center"`
	Zoom     ZoomConfig     `yaml:"zoom"`
	Palette  []string       `yaml:"palette"`
	Coloring ColoringConfig `yaml:"coloring"`
	Server   ServerConfig   `yaml:"server"`
	Archive  ArchiveConfig  `yaml:"archive"`
	LogLevel string         `yaml:"log_level"` // debug | info | warn | error
}

// FrameConfig sizes every frame of the sequence.
type FrameConfig struct {
	Width                int    `yaml:"width"`
	Height               int    `yaml:"height"`
	Iterations           int    `yaml:"iterations"`
	Precision            uint   `yaml:"precision"` // bits of the center and the reference orbit
	Alpha                uint8  `yaml:"alpha"`
	Bounds               Region `yaml:"bounds"`
	Workers              int    `yaml:"workers"`
	TileSize             int    `yaml:"tile_size"`
	CapAtReferenceEscape bool   `yaml:"cap_at_reference_escape"`
}

// CenterConfig names a preset or gives the center as decimal strings.
// Re and Im take precedence over Preset.
type CenterConfig struct {
	Preset string `yaml:"preset"`
	Re     string `yaml:"re"`
	Im     string `yaml:"im"`
}

// ZoomConfig is the zoom policy of the driver.
type ZoomConfig struct {
	Start     float64       `yaml:"start"`
	Increment float64       `yaml:"increment"`
	Interval  time.Duration `yaml:"interval"`
}

// ColoringConfig picks the palette gradient or the single hue shading.
type ColoringConfig struct {
	Mode   string  `yaml:"mode"` // palette | hsl
	Hue    float64 `yaml:"hue"`
	Inside string  `yaml:"inside"` // color of the set in hsl mode
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	StaticDir string `yaml:"static_dir"`
}

// ArchiveConfig configures the frame archive.
type ArchiveConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DBPath     string `yaml:"db_path"`
	ThumbWidth int    `yaml:"thumb_width"`
}

// DefaultConfig zooms into the needle minibrot at +10000 per frame with
// 1920x1080 frames of 500 iterations.
func DefaultConfig() *Config {
	return &Config{
		Frame: FrameConfig{
			Width:      1920,
			Height:     1080,
			Iterations: 500,
			Precision:  DefaultPrecision,
			Alpha:      255,
			Bounds:     DefaultBounds,
			TileSize:   64,
		},
		Center: CenterConfig{Preset: "needle-minibrot"},
		Zoom: ZoomConfig{
			Start:     1,
			Increment: 10000,
		},
		Palette: DefaultPalette.Hex(),
		Coloring: ColoringConfig{
			Mode:   string(ColoringPalette),
			Hue:    DefaultHSLColoring.Hue,
			Inside: "#efefef",
		},
		Server: ServerConfig{
			Listen:    ":8080",
			StaticDir: "./static",
		},
		Archive: ArchiveConfig{
			DBPath:     "deepzoom.db",
			ThumbWidth: 240,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Frame.Width <= 0 || c.Frame.Height <= 0 {
		return fmt.Errorf("frame: %w: %dx%d", ErrInvalidSize, c.Frame.Width, c.Frame.Height)
	}
	if c.Frame.Iterations < 0 {
		return fmt.Errorf("frame: %w", ErrInvalidIterations)
	}
	if c.Frame.Precision < 64 {
		return fmt.Errorf("frame: %w: %d", ErrInvalidPrecision, c.Frame.Precision)
	}
	if c.Frame.Bounds.Xmax <= c.Frame.Bounds.Xmin || c.Frame.Bounds.Ymax <= c.Frame.Bounds.Ymin {
		return fmt.Errorf("frame: bounds %+v are empty", c.Frame.Bounds)
	}
	if len(c.Palette) == 0 {
		return fmt.Errorf("palette: %w", ErrEmptyPalette)
	}
	if len(c.Palette) < 2 {
		return fmt.Errorf("palette: need at least 2 entries, got %d", len(c.Palette))
	}
	if _, err := ParsePalette(c.Palette); err != nil {
		return fmt.Errorf("palette: %w", err)
	}
	if _, err := c.hslColoring(); err != nil {
		return fmt.Errorf("coloring: %w", err)
	}
	if !validZoom(c.Zoom.Start) {
		return fmt.Errorf("zoom: %w: start %v", ErrInvalidZoom, c.Zoom.Start)
	}
	if c.Zoom.Increment < 0 {
		return fmt.Errorf("zoom: %w: negative increment %v", ErrInvalidZoom, c.Zoom.Increment)
	}
	if _, err := c.CenterPoint(); err != nil {
		return fmt.Errorf("center: %w", err)
	}
	if c.Archive.Enabled && c.Archive.DBPath == "" {
		return fmt.Errorf("archive: db_path is required")
	}
	return nil
}

// CenterPoint parses the configured center at the configured precision.
func (c *Config) CenterPoint() (Center, error) {
	if c.Center.Re != "" || c.Center.Im != "" {
		return ParseCenter(c.Center.Re, c.Center.Im, c.Frame.Precision)
	}
	return Preset(c.Center.Preset, c.Frame.Precision)
}

// Viewport returns the starting viewport of the sequence.
func (c *Config) Viewport() (Viewport, error) {
	center, err := c.CenterPoint()
	if err != nil {
		return Viewport{}, err
	}
	v, err := NewViewport(c.Frame.Width, c.Frame.Height, c.Frame.Iterations, c.Zoom.Start, center)
	if err != nil {
		return Viewport{}, err
	}
	return *v, nil
}

// GeneratorConfig returns the frame assembler settings.
func (c *Config) GeneratorConfig() (GeneratorConfig, error) {
	p, err := ParsePalette(c.Palette)
	if err != nil {
		return GeneratorConfig{}, err
	}
	hsl, err := c.hslColoring()
	if err != nil {
		return GeneratorConfig{}, err
	}
	return GeneratorConfig{
		Palette:              p,
		Coloring:             Coloring(c.Coloring.Mode),
		HSL:                  hsl,
		Bounds:               c.Frame.Bounds,
		Alpha:                c.Frame.Alpha,
		Workers:              c.Frame.Workers,
		TileSize:             c.Frame.TileSize,
		CapAtReferenceEscape: c.Frame.CapAtReferenceEscape,
	}, nil
}

func (c *Config) hslColoring() (HSLColoring, error) {
	switch Coloring(c.Coloring.Mode) {
	case ColoringPalette, ColoringHSL:
	default:
		return HSLColoring{}, fmt.Errorf("unknown mode %q", c.Coloring.Mode)
	}
	if c.Coloring.Hue < 0 || c.Coloring.Hue >= 360 {
		return HSLColoring{}, fmt.Errorf("hue %v outside [0, 360)", c.Coloring.Hue)
	}
	inside, err := ParseColor(c.Coloring.Inside)
	if err != nil {
		return HSLColoring{}, err
	}
	return HSLColoring{Hue: c.Coloring.Hue, Inside: inside}, nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
