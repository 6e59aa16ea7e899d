package bootstrap

import (
	"firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/craftdeck/craftdeck-backend/internal/api/http"
	"github.com/craftdeck/craftdeck-backend/internal/auth/middleware"
	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	eventshttp "github.com/craftdeck/craftdeck-backend/internal/events/http"
	eventsrepo "github.com/craftdeck/craftdeck-backend/internal/events/repository"
	graphshttp "github.com/craftdeck/craftdeck-backend/internal/graphs/http"
	graphsrepo "github.com/craftdeck/craftdeck-backend/internal/graphs/repository"
	graphsvc "github.com/craftdeck/craftdeck-backend/internal/graphs/service"
	streamhttp "github.com/craftdeck/craftdeck-backend/internal/stream/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Store       graphsrepo.Store
	Broker      *broker.Broker
	// AuthClient nil disables auth (local development).
	AuthClient *auth.Client
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	if dep.AuthClient != nil {
		api.Use(middleware.FirebaseAuthMiddleware(dep.AuthClient))
	}

	graphService := graphsvc.NewGraphService(dep.Store)
	var eventLog *eventsrepo.LogRepository
	if dep.DB != nil {
		eventLog = eventsrepo.NewLogRepository(dep.DB)
	}

	eventshttp.NewHandler(dep.Broker, eventLog).Register(api)
	graphshttp.NewHandler(graphService).Register(api)
	streamhttp.NewHandler(dep.Broker, graphService).Register(api)

	return r
}
