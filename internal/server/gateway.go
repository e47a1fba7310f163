package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nao1215/streamscout/internal/model"
)

// DefaultShutdownTimeout bounds how long Run waits for in-flight requests
// once its context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

type (
	// Config holds the listener settings.
	Config struct {
		ListenAddress   string
		ShutdownTimeout time.Duration
	}

	// Resolver is the resolution service the gateway exposes.
	// *resolver.Service implements it.
	Resolver interface {
		Resolve(ctx context.Context, id model.Identifier) (*model.Report, error)
		Registry() *model.Registry
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// Gateway is a thin wrapper around the echo router. It validates the
	// inbound identifier, hands it to the resolver and serializes the report.
	Gateway struct {
		config   *Config
		ec       *echo.Echo
		logger   *slog.Logger
		metrics  http.Handler
		resolve  controller
		registry controller
	}

	// Option configures a Gateway.
	Option func(*Gateway)
)

// WithLogger sets the logger used for request logs.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetricsHandler serves handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(g *Gateway) {
		g.metrics = handler
	}
}

// New constructs the echo router and registers every route.
func New(config *Config, resolver Resolver, opts ...Option) *Gateway {
	ec := echo.New()
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	gateway := &Gateway{
		config:   config,
		ec:       ec,
		resolve:  newResolveController(validate, resolver),
		registry: newRegistryController(resolver),
	}
	for _, opt := range opts {
		opt(gateway)
	}
	if gateway.logger == nil {
		gateway.logger = slog.Default()
	}

	ec.OnAddRouteHandler = func(_ string, route echo.Route, _ echo.HandlerFunc, _ []echo.MiddlewareFunc) {
		gateway.logger.Debug("registered route", "method", route.Method, "path", route.Path)
	}
	ec.HTTPErrorHandler = gateway.handleError

	ec.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	ec.Use(gateway.requestLogger())
	ec.Use(middleware.Recover())

	gateway.resolve.SetRoutes(ec.Group(""))
	gateway.registry.SetRoutes(ec.Group(""))

	ec.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if gateway.metrics != nil {
		ec.GET("/metrics", echo.WrapHandler(gateway.metrics))
	}

	return gateway
}

// ServeHTTP lets the gateway be mounted or tested without a listener.
func (gateway *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled, then shuts
// the server down gracefully. A listener failure is returned; parent
// cancellation is not an error.
func (gateway *Gateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	defer ctxCancel(nil)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.logger.Info("http server listening", "address", gateway.config.ListenAddress)
		if err := gateway.ec.Start(gateway.config.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	<-ctx.Done()

	timeout := gateway.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := gateway.ec.Shutdown(shutdownCtx); err != nil {
		gateway.logger.Warn("http server shutdown", "error", err)
		_ = gateway.ec.Close()
	}

	wg.Wait()

	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}
	return nil
}

// handleError renders every error as {"error": message}.
func (gateway *Gateway) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		gateway.logger.Error("request failed",
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorBody{Error: message})
	}
	if err != nil {
		gateway.logger.Warn("failed to write error response", "error", err)
	}
}

// requestLogger logs each request at debug level, or warn for 5xx.
func (gateway *Gateway) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			gateway.logger.Log(context.Background(), level, "request",
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			)
			return nil
		},
	})
}
