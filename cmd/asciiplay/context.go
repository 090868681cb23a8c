package main

import (
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay/config"
	"github.com/tmpim/asciiplay/host"
	"github.com/tmpim/asciiplay/logging"
	"github.com/tmpim/asciiplay/stream"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) levelOverride() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

// logger builds the command logger. A nil out keeps the default stderr.
func (c *commandContext) logger(out io.Writer) (*logrus.Logger, io.Closer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	return logging.NewFromConfig(cfg, c.levelOverride(), out)
}

func sessionOptions(cfg *config.Config, log logrus.FieldLogger) stream.SessionOptions {
	return stream.SessionOptions{
		Access:     host.NewLocal(log),
		FPS:        cfg.Player.FPS,
		Loop:       cfg.Player.Loop,
		Color:      cfg.Player.Color,
		FontSize:   cfg.Player.FontSize,
		Metrics:    cfg.Metrics(),
		Fit:        cfg.FitOptions(),
		Rasterizer: cfg.Rasterizer(),
		Policy:     cfg.YieldPolicy(),
		Log:        log,
	}
}
