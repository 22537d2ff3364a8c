package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/maratoff/institute-dashboard-iam/internal/infra/config"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/redis"
	"github.com/maratoff/institute-dashboard-iam/internal/transport/http/handlers"
	"github.com/maratoff/institute-dashboard-iam/internal/transport/http/middleware"
	"github.com/maratoff/institute-dashboard-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Login     *usecase.LoginService
	Sessions  *usecase.SessionService
	Passwords *usecase.PasswordService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Services    ServiceSet
	RoutePolicy usecase.RoutePolicy
	Pool        *pgxpool.Pool
	Cache       *redis.Client
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else if deps.Logger != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}

	healthHandler := handlers.NewHealthHandler(deps.Pool, deps.Cache)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Login, deps.Services.Sessions)
		authHandler.RegisterRoutes(authGroup)

		passwordGroup := api.Group("/password")
		passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords, deps.Services.Sessions)
		passwordHandler.RegisterRoutes(passwordGroup)

		routesGroup := api.Group("/routes")
		routesHandler := handlers.NewRoutesHandler(deps.RoutePolicy, deps.Services.Sessions)
		routesHandler.RegisterRoutes(routesGroup)
	}

	return r
}
