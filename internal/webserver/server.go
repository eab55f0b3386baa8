package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/config"
	"go.uber.org/zap"
)

// AdminServer is the operator web UI and its JSON endpoints
type AdminServer struct {
	root   *echo.Echo
	config *config.AppConfig
}

// NewAdminServer builds the echo instance with middleware, templates,
// validation and the uploaded image directory mounted.
func NewAdminServer(cfg *config.AppConfig) (*AdminServer, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.INFO)
	}

	renderer, err := newTemplateRenderer()
	if err != nil {
		return nil, errors.Wrap(err, "load templates")
	}
	e.Renderer = renderer
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("32M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("namespace", "web"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			zap.L().Debug("request", fields...)
			return nil
		},
	}))
	e.Use(session.Middleware(sessions.NewCookieStore([]byte(cfg.Web.Secret))))

	e.Static("/product-images", cfg.ImageDirPath())

	return &AdminServer{root: e, config: cfg}, nil
}

// Echo exposes the router, mainly for tests
func (s *AdminServer) Echo() *echo.Echo {
	return s.root
}

func (s *AdminServer) GET(path string, h echo.HandlerFunc) {
	s.root.GET(path, h)
}

func (s *AdminServer) POST(path string, h echo.HandlerFunc) {
	s.root.POST(path, h)
}

// Start blocks serving until Shutdown is called
func (s *AdminServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Web.Host, s.config.Web.Port)
	zap.L().Info("admin server listening", zap.String("namespace", "web"), zap.String("addr", addr))
	err := s.root.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests
func (s *AdminServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.root.Shutdown(ctx)
}
