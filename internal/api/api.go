// Package api implements the HTTP API under /api/v2: image analysis,
// saved history, dashboard statistics and account handling.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/redharvest/redharvest-go/internal/blobstore"
	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/inference"
	"github.com/redharvest/redharvest-go/internal/logging"
	"github.com/redharvest/redharvest-go/internal/observability"
	"github.com/redharvest/redharvest-go/internal/security"
	"github.com/redharvest/redharvest-go/internal/viewstate"
)

// maxUploadBytes caps incoming image uploads.
const maxUploadBytes = 20 << 20

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	inference *inference.Client
	blobs     *blobstore.Store
	auth      *security.Manager
	views     *viewstate.Manager
	metrics   *observability.Metrics

	apiLogger *slog.Logger
	startTime time.Time
}

// New creates the controller and registers every route on the echo
// instance.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	inferenceClient *inference.Client, blobs *blobstore.Store,
	authManager *security.Manager, metrics *observability.Metrics) *Controller {

	logger := logging.ForService("api")
	if logger == nil {
		logger = slog.Default().With("service", "api")
	}

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		inference: inferenceClient,
		blobs:     blobs,
		auth:      authManager,
		views:     viewstate.NewManager(viewstate.DefaultTTL),
		metrics:   metrics,
		apiLogger: logger,
		startTime: time.Now(),
	}

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v2")
	c.Group.Use(middleware.BodyLimit("20M"))

	if len(c.Settings.Security.AllowedOrigins) > 0 {
		c.Group.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     c.Settings.Security.AllowedOrigins,
			AllowCredentials: true,
		}))
	}

	// Public routes.
	c.Group.GET("/health", c.HealthCheck)
	c.Group.POST("/auth/register", c.Register)
	c.Group.POST("/auth/login", c.Login)
	c.Group.POST("/auth/logout", c.Logout)
	c.Group.GET("/auth/status", c.AuthStatus)

	if c.metrics != nil {
		c.Group.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	// Stored images.
	if c.blobs != nil {
		c.Group.Static("/media", c.blobs.Root())
	}

	// Everything below needs a signed-in user.
	protected := c.Group.Group("", c.auth.RequireAuth)
	protected.POST("/analyses/analyze", c.AnalyzeImage)
	protected.POST("/analyses", c.SaveAnalysis)
	protected.GET("/analyses", c.GetHistory)
	protected.GET("/analyses/:id", c.GetAnalysis)
	protected.DELETE("/analyses/:id", c.DeleteAnalysis)
	protected.GET("/analytics/dashboard", c.GetDashboard)
	protected.GET("/session", c.GetSessionView)
	protected.POST("/session/reset", c.ResetSessionView)

	// Admin-only listings across all accounts and owners.
	admin := protected.Group("/admin", c.auth.RequireAdmin)
	admin.GET("/users", c.AdminListUsers)
	admin.GET("/analyses", c.AdminListAnalyses)
}

// ErrorResponse is the JSON shape every failed request gets.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an API error response with a fresh correlation
// id for log cross-referencing.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error
// tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs the failure with its correlation id and returns the
// JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	c.apiLogger.Error("api error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, resp)
}

// HealthCheck reports the API's own liveness and whether the inference
// backend is reachable.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	status := map[string]any{
		"status":     "healthy",
		"uptime_s":   int(time.Since(c.startTime).Seconds()),
		"backend_up": false,
	}

	if c.inference != nil {
		if err := c.inference.Health(ctx.Request().Context()); err == nil {
			status["backend_up"] = true
		} else {
			status["status"] = "degraded"
		}
	}

	code := http.StatusOK
	if status["status"] != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, status)
}
