package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/havenloop/dispatch-api/internal/handler"
	"github.com/havenloop/dispatch-api/internal/middleware"
)

// Handler registers a set of routes on the API group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	Timeout    middleware.TimeoutConfig
}

type Router struct {
	engine  *gin.Engine
	healthH *handler.HealthHandler
}

func New(healthH *handler.HealthHandler, config Config, handlers ...Handler) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.ErrorHandler())
	engine.Use(middleware.CORS(config.CORSConfig))
	engine.Use(middleware.Timeout(config.Timeout))
	engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	}).RateLimit())

	engine.GET("/healthz", healthH.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	return &Router{engine: engine, healthH: healthH}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
