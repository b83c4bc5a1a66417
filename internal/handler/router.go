package handler

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gfearing/fearings-services/internal/middleware"
	"github.com/gfearing/fearings-services/internal/policy"
	"github.com/gfearing/fearings-services/internal/session"
	"github.com/gfearing/fearings-services/internal/websocket"
	"github.com/gfearing/fearings-services/web"
	"github.com/gin-gonic/gin"
)

// ServiceName identifies this service in traces and logs
const ServiceName = "fearings-services"

// RouterConfig holds everything the router wires together
type RouterConfig struct {
	Policy       *policy.Policy
	Service      Submitter
	Estimator    EstimatorStatus
	Store        *session.Store
	Hub          *websocket.Hub
	CSRF         *middleware.CSRFMiddleware
	SessionTTL   time.Duration
	CookieSecure bool
	Version      string
}

// templateFuncs are available to every page template
var templateFuncs = template.FuncMap{
	"usd": policy.FormatUSD,
}

// NewRouter builds the gin engine with every route and middleware
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	pageHandler := NewPageHandler(cfg.Policy, cfg.Store, cfg.CSRF)
	estimateHandler := NewEstimateHandler(cfg.Service, cfg.Store)
	wsHandler := NewWebSocketHandler(cfg.Hub, cfg.Store)
	healthHandler := NewHealthHandler(cfg.Estimator, cfg.Hub, cfg.Store, cfg.Version)

	r := gin.New()
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.SetHTMLTemplate(tmpl)

	r.StaticFS("/static", http.FS(web.Static()))

	// Probes and metrics carry no session
	r.GET("/health/live", healthHandler.LivenessCheck)
	r.GET("/health/ready", healthHandler.ReadinessCheck)
	r.GET("/health", healthHandler.DetailedHealthCheck)
	r.GET("/metrics", healthHandler.GetMetrics)
	r.GET("/debug/memory", healthHandler.DebugMemory)

	site := r.Group("/")
	site.Use(middleware.Session(middleware.SessionConfig{
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure,
	}))
	site.Use(cfg.CSRF.RequireCSRF())
	site.Use(middleware.AuditMiddleware())
	{
		site.GET("/", pageHandler.Index)
		site.GET("/ws", wsHandler.HandleConnection)

		api := site.Group("/api")
		api.GET("/estimate", estimateHandler.Current)
		api.POST("/estimate", estimateHandler.Submit)
		api.GET("/ws/stats", wsHandler.GetConnectionStats)
	}

	return r, nil
}
