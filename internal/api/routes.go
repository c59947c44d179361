// routes.go - Route registration helpers
// This file provides a clean way to register all page and API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/zodakzach/youtube-history-metrics/internal/web"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions     SessionManager
	Metrics      http.Handler // served at /metrics when set
	View         web.ViewOptions
	Endpoint     string
	CookieName   string
	CookieSecure bool
	RelayCookies bool
	AllowOrigins []string
	Version      string
	Logger       logrus.FieldLogger
}

func (d *Dependencies) resolver() *sessionResolver {
	return newSessionResolver(d.Sessions, d.CookieName, d.CookieSecure)
}

func (d *Dependencies) logger() logrus.FieldLogger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

func (d *Dependencies) checkOrigin(r *http.Request) bool {
	if sameHostOrigin(r) {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range d.AllowOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Upload  UploadHandler
	Status  StatusHandler
	Stream  StatusStreamHandler
	Metrics http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps),
		Upload:  NewUploadHandler(deps),
		Status:  NewStatusHandler(deps),
		Stream:  NewWebSocketHandler(deps),
		Metrics: deps.Metrics,
	}
}

// RegisterRoutes registers all page and API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Pages
	e.GET("/", handlers.Upload.HandleIndex)
	e.GET("/instructions", handlers.Upload.HandleInstructions)

	// HTMX fragments
	uploadGroup := e.Group("/upload")
	uploadGroup.POST("/select", handlers.Upload.HandleSelectFile)
	uploadGroup.POST("/submit", handlers.Upload.HandleSubmit)

	// JSON API
	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.GET("/upload/status", handlers.Status.HandleStatus)
	apiGroup.GET("/upload/status/msgpack", handlers.Status.HandleStatusMsgpack)
	apiGroup.GET("/ws/status", handlers.Stream.HandleStatusStream)

	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}
}

// MiddlewareOptions selects the optional middleware
type MiddlewareOptions struct {
	RequestLogging   bool
	Compression      bool
	CompressionLevel int
	BodyLimit        string
	EnableCORS       bool
	AllowOrigins     []string
	ShowErrorDetails bool
	Logger           logrus.FieldLogger
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Use custom error handler
	e.HTTPErrorHandler = NewErrorHandler(logger, opts.ShowErrorDetails)

	// Request logging through logrus; health, status polling and metrics are noise
	if opts.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/api/health" ||
					path == "/metrics" ||
					strings.HasPrefix(path, "/api/upload/status") ||
					strings.HasPrefix(path, "/static/")
			},
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				entry := logger.WithFields(logrus.Fields{
					"method":  v.Method,
					"uri":     v.URI,
					"status":  v.Status,
					"latency": v.Latency.Round(time.Millisecond),
					"remote":  v.RemoteIP,
				})
				if v.Error != nil {
					entry.WithError(v.Error).Warnf("Request failed")
					return nil
				}
				entry.Infof("Request")
				return nil
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.WithError(err).WithField("stack", string(stack)).Errorf("Recovered from panic")
			return err
		},
	}))

	// Compression middleware; never for the WebSocket upgrade
	if opts.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: opts.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == "/api/ws/status"
			},
		}))
	}

	// Body limit middleware
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	// CORS configuration
	if opts.EnableCORS {
		origins := opts.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "HX-Request", "HX-Target", "HX-Trigger", "HX-Current-URL"},
			AllowCredentials: true,
		}))
	}
}

// SplitOrigins parses a comma separated origin list
func SplitOrigins(s string) []string {
	var out []string
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
