package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/layer-3/hoopgate/internal/metrics"
	"github.com/layer-3/hoopgate/ports"
	"github.com/layer-3/hoopgate/service"
)

// RouterConfig carries the router's dependencies
type RouterConfig struct {
	Gate           *service.GateService
	Links          *service.LinkService
	Limiter        ports.RateLimiter
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer // Served at /metrics; nil disables the route
	Logger         *zap.Logger
	TrustedProxies []string
	StaticDir      string // Client assets served under /static
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(templates)

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	router.Use(RequestLogger(log, cfg.Metrics))

	// Create handlers
	handlers := NewGateHandlers(cfg.Gate, cfg.Links)

	// Pages
	router.GET("/", handlers.Landing)
	router.GET("/final.html", StepTwoShield(cfg.Gate), handlers.Final)
	if cfg.StaticDir != "" {
		router.Static("/static", cfg.StaticDir)
	}

	// Game API
	api := router.Group("/api")
	{
		api.POST("/basketball/init", handlers.Init)
		api.POST("/basketball/validate", handlers.ValidateStepOne)
		api.POST("/basketball/preview", handlers.Preview)
		api.POST("/step2/validate", handlers.ValidateStepTwo)
	}

	// Link generation
	gen := router.Group("/api")
	if cfg.Limiter != nil {
		gen.Use(RateLimit(cfg.Limiter, cfg.Metrics))
	}
	{
		gen.Any("/generate", handlers.Generate)
		gen.Any("/getlink", handlers.GetLink)
	}

	// Ops
	router.GET("/healthz", handlers.Health)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return router, nil
}
