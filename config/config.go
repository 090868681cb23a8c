// Package config loads the asciiplay TOML configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/tmpim/asciiplay"
)

//go:embed sample_config.toml
var sampleConfig string

// Player contains the initial playback settings.
type Player struct {
	FPS      int     `toml:"fps"`
	Loop     bool    `toml:"loop"`
	Color    bool    `toml:"color"`
	FontSize float64 `toml:"font_size"`
	Volume   float64 `toml:"volume"`
}

// Render contains the rasterizer constants.
type Render struct {
	CharWidthRatio    float64 `toml:"char_width_ratio"`
	LineHeightRatio   float64 `toml:"line_height_ratio"`
	DarknessThreshold int     `toml:"darkness_threshold"`
	MinFontSize       float64 `toml:"min_font_size"`
	MaxFontSize       float64 `toml:"max_font_size"`
	FitPadding        float64 `toml:"fit_padding"`
}

// Loader contains the cooperative yield intervals of background work.
type Loader struct {
	BackoffMS  int `toml:"backoff_ms"`
	MinYieldMS int `toml:"min_yield_ms"`
}

// Server contains the HTTP API settings.
type Server struct {
	Bind               string   `toml:"bind"`
	HandshakeTimeoutMS int      `toml:"handshake_timeout_ms"`
	AllowOrigins       []string `toml:"allow_origins"`
}

// Watch contains the directory watcher settings.
type Watch struct {
	Enabled    bool     `toml:"enabled"`
	DebounceMS int      `toml:"debounce_ms"`
	Patterns   []string `toml:"patterns"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File additionally writes logs to this path when set.
	File string `toml:"file"`
}

// Config encapsulates all configuration values.
type Config struct {
	Player  Player  `toml:"player"`
	Render  Render  `toml:"render"`
	Loader  Loader  `toml:"loader"`
	Server  Server  `toml:"server"`
	Watch   Watch   `toml:"watch"`
	Logging Logging `toml:"logging"`
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/asciiplay/config.toml")
}

// Load parses and validates the configuration at path. An empty path uses
// the default location; a missing file yields the defaults. exists reports
// whether a file was read.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	c := Default()

	resolved, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&c); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}

	return &c, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
	} else {
		var err error
		path, err = expandPath(path)
		if err != nil {
			return "", false, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", path)
	}
	return path, true, nil
}

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Logging.File != "" {
		if p, err := expandPath(c.Logging.File); err == nil {
			c.Logging.File = p
		}
	}
}

// Metrics returns the font metrics at the configured font size.
func (c *Config) Metrics() asciiplay.Metrics {
	return asciiplay.Metrics{
		FontSize:        c.Player.FontSize,
		CharWidthRatio:  c.Render.CharWidthRatio,
		LineHeightRatio: c.Render.LineHeightRatio,
	}
}

// FitOptions returns the font auto-fit bounds.
func (c *Config) FitOptions() asciiplay.FitOptions {
	return asciiplay.FitOptions{
		CharWidthRatio:  c.Render.CharWidthRatio,
		LineHeightRatio: c.Render.LineHeightRatio,
		MinFontSize:     c.Render.MinFontSize,
		MaxFontSize:     c.Render.MaxFontSize,
		Padding:         c.Render.FitPadding,
	}
}

// Rasterizer returns the configured rasterizer.
func (c *Config) Rasterizer() asciiplay.Rasterizer {
	return asciiplay.Rasterizer{DarknessThreshold: uint8(c.Render.DarknessThreshold)}
}

// YieldPolicy returns the configured background yield policy.
func (c *Config) YieldPolicy() asciiplay.YieldPolicy {
	return asciiplay.YieldPolicy{
		Backoff: time.Duration(c.Loader.BackoffMS) * time.Millisecond,
		Min:     time.Duration(c.Loader.MinYieldMS) * time.Millisecond,
	}
}

// HandshakeTimeout returns the websocket handshake timeout.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Server.HandshakeTimeoutMS) * time.Millisecond
}

// WatchDebounce returns the watcher debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
