package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlayer(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLoader(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlayer() error {
	if c.Player.FPS <= 0 {
		return fmt.Errorf("player.fps must be positive, got %d", c.Player.FPS)
	}
	if c.Player.FontSize <= 0 {
		return errors.New("player.font_size must be positive")
	}
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		return errors.New("player.volume must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.CharWidthRatio <= 0 || c.Render.LineHeightRatio <= 0 {
		return errors.New("render.char_width_ratio and render.line_height_ratio must be positive")
	}
	if c.Render.DarknessThreshold < 0 || c.Render.DarknessThreshold > 255 {
		return errors.New("render.darkness_threshold must be between 0 and 255")
	}
	if c.Render.MinFontSize <= 0 || c.Render.MaxFontSize < c.Render.MinFontSize {
		return errors.New("render.min_font_size must be positive and not above render.max_font_size")
	}
	if c.Render.FitPadding < 0 {
		return errors.New("render.fit_padding must not be negative")
	}
	return nil
}

func (c *Config) validateLoader() error {
	if c.Loader.BackoffMS < 0 || c.Loader.MinYieldMS < 0 {
		return errors.New("loader.backoff_ms and loader.min_yield_ms must not be negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.HandshakeTimeoutMS <= 0 {
		return errors.New("server.handshake_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.DebounceMS < 0 {
		return errors.New("watch.debounce_ms must not be negative")
	}
	if c.Watch.Enabled && len(c.Watch.Patterns) == 0 {
		return errors.New("watch.patterns must not be empty when watching is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
