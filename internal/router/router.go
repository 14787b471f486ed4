package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/clinicore/clinic-api/internal/handler"
	authHandler "github.com/clinicore/clinic-api/internal/handler/auth"
	membershipHandler "github.com/clinicore/clinic-api/internal/handler/membership"
	permissionHandler "github.com/clinicore/clinic-api/internal/handler/permission"
	roleHandler "github.com/clinicore/clinic-api/internal/handler/role"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/pkg/logger"
)

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

type Router struct {
	engine      *gin.Engine
	validator   middleware.TokenValidator
	access      *middleware.AccessMiddleware
	authH       *authHandler.Handler
	roleH       *roleHandler.Handler
	permissionH *permissionHandler.Handler
	membershipH *membershipHandler.Handler
	healthH     *handler.HealthHandler
}

func NewRouter(
	validator middleware.TokenValidator,
	access *middleware.AccessMiddleware,
	authH *authHandler.Handler,
	roleH *roleHandler.Handler,
	permissionH *permissionHandler.Handler,
	membershipH *membershipHandler.Handler,
	healthH *handler.HealthHandler,
	log *logger.Logger,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidations()
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.RequestLogger(log),
		middleware.ErrorHandler(log),
		middleware.Timeout(middleware.TimeoutConfig{Duration: 30 * time.Second}),
	)
	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:      engine,
		validator:   validator,
		access:      access,
		authH:       authH,
		roleH:       roleH,
		permissionH: permissionH,
		membershipH: membershipH,
		healthH:     healthH,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.setupHealthCheck(api)

	// Token parsing is non-blocking; each route declares its own access
	// requirements through the access middleware.
	api.Use(middleware.Authenticate(r.validator))

	r.authH.RegisterRoutes(api, r.access)
	r.roleH.RegisterRoutes(api, r.access)
	r.permissionH.RegisterRoutes(api, r.access)
	r.membershipH.RegisterRoutes(api, r.access)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.healthH.LivenessCheck)
		health.GET("/ready", r.healthH.ReadinessCheck)
		health.GET("/metrics", r.healthH.MetricsHandler)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
