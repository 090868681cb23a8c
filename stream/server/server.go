// Package server exposes a stream.Manager over HTTP and websockets.
package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/stream"
)

// Options configures the HTTP API.
type Options struct {
	HandshakeTimeout time.Duration
	// AllowOrigins enables CORS for the listed origins and admits them to
	// the websocket endpoint alongside same-host pages.
	AllowOrigins []string
	Log          logrus.FieldLogger
}

type openRequest struct {
	Path string `json:"path"`
}

type seekRequest struct {
	Position *float64 `json:"position"`
}

type fpsRequest struct {
	FPS int `json:"fps"`
}

type fontRequest struct {
	Size float64 `json:"size"`
}

type fitRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

// New returns an echo instance serving mgr under /api.
func New(mgr *stream.Manager, opts Options) *echo.Echo {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "server")

	upgrader := websocket.Upgrader{
		HandshakeTimeout: opts.HandshakeTimeout,
		CheckOrigin:      checkOrigin(opts.AllowOrigins),
	}
	painters := new(painterCache)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method": v.Method,
				"uri":    v.URI,
				"status": v.Status,
			}).Debug("request")
			return nil
		},
	}))
	if len(opts.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
		}))
	}

	api := e.Group("/api")

	api.GET("/client", func(c echo.Context) error {
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		mgr.HandleConn(ws)

		return nil
	})

	api.GET("/state", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mgr.State())
	})

	api.POST("/open", func(c echo.Context) error {
		var req openRequest
		if err := c.Bind(&req); err != nil {
			return err
		}

		path := strings.TrimSpace(req.Path)
		if path == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "path must be specified")
		}

		log.WithField("path", path).Info("opening frames")

		state, err := mgr.Open(c.Request().Context(), path)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, &state)
	})

	api.POST("/play", func(c echo.Context) error {
		return respond(c)(mgr.Play())
	})

	api.POST("/pause", func(c echo.Context) error {
		state := mgr.Pause()
		return c.JSON(http.StatusOK, &state)
	})

	api.POST("/toggle", func(c echo.Context) error {
		return respond(c)(mgr.Toggle())
	})

	api.POST("/seek", func(c echo.Context) error {
		var req seekRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		if req.Position == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "position must be specified")
		}
		return respond(c)(mgr.Seek(*req.Position))
	})

	api.POST("/step/forward", func(c echo.Context) error {
		return respond(c)(mgr.Step(1))
	})

	api.POST("/step/backward", func(c echo.Context) error {
		return respond(c)(mgr.Step(-1))
	})

	api.POST("/fps", func(c echo.Context) error {
		var req fpsRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		return respond(c)(mgr.SetFPS(req.FPS))
	})

	api.POST("/font", func(c echo.Context) error {
		var req fontRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		return respond(c)(mgr.SetFontSize(req.Size))
	})

	api.POST("/fit", func(c echo.Context) error {
		var req fitRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		return respond(c)(mgr.Fit(req.Width, req.Height))
	})

	api.POST("/color", func(c echo.Context) error {
		var req toggleRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		state := mgr.SetColor(req.Enabled)
		return c.JSON(http.StatusOK, &state)
	})

	api.POST("/loop", func(c echo.Context) error {
		var req toggleRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		state := mgr.SetLoop(req.Enabled)
		return c.JSON(http.StatusOK, &state)
	})

	api.POST("/volume", func(c echo.Context) error {
		var req volumeRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		state := mgr.SetVolume(req.Volume, req.Muted)
		return c.JSON(http.StatusOK, &state)
	})

	api.GET("/frames/:index", func(c echo.Context) error {
		index, err := frameIndex(c)
		if err != nil {
			return err
		}

		packet, ok := mgr.FramePacket(index)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "frame not found")
		}
		return c.JSON(http.StatusOK, &packet)
	})

	api.GET("/frames/:index/png", func(c echo.Context) error {
		index, err := frameIndex(c)
		if err != nil {
			return err
		}

		session := mgr.Session()
		if _, ok := session.Frame(index); !ok {
			return echo.NewHTTPError(http.StatusNotFound, "frame not found")
		}

		surface, _ := session.Cache().Get(index)
		if surface == nil {
			return echo.NewHTTPError(http.StatusNotFound, "frame has no color data")
		}

		img := surface.Image
		if img == nil {
			painter, err := painters.get(surface.Raster.Metrics)
			if err != nil {
				return err
			}
			img = painter.Paint(surface.Raster)
		}

		buf := new(bytes.Buffer)
		if err := png.Encode(buf, img); err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "image/png", buf.Bytes())
	})

	api.GET("/audio", func(c echo.Context) error {
		uri := mgr.Session().AudioURI()
		data, err := decodeDataURI(uri)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "no audio")
		}
		return c.Blob(http.StatusOK, "audio/mpeg", data)
	})

	return e
}

// checkOrigin accepts requests without an Origin header, from the serving
// host, or from one of allowed.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// painterCache keeps the painter of the last requested metrics.
type painterCache struct {
	mutex   sync.Mutex
	painter *asciiplay.Painter
}

func (p *painterCache) get(m asciiplay.Metrics) (*asciiplay.Painter, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.painter != nil && p.painter.Metrics() == m {
		return p.painter, nil
	}

	painter, err := asciiplay.NewPainter(m)
	if err != nil {
		return nil, err
	}
	p.painter = painter
	return painter, nil
}

func respond(c echo.Context) func(stream.State, error) error {
	return func(state stream.State, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, &state)
	}
}

func frameIndex(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "index must be a non-negative integer")
	}
	return index, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	i := strings.Index(uri, ";base64,")
	if !strings.HasPrefix(uri, "data:") || i < 0 {
		return nil, errors.New("server: not a base64 data URI")
	}
	return base64.StdEncoding.DecodeString(uri[i+len(";base64,"):])
}

// StatusCode maps a pipeline error to an HTTP status.
func StatusCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}

	switch asciiplay.KindOf(err) {
	case asciiplay.NotFound:
		return http.StatusNotFound
	case asciiplay.InvalidInput, asciiplay.FormatError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := StatusCode(err)
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}

		if code >= http.StatusInternalServerError {
			log.WithError(err).Error("request failed")
		}

		if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
			log.WithError(err).Warn("failed to write error response")
		}
	}
}
