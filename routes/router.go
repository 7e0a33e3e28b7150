package routes

import (
	"net/http"
	"time"

	"smrms-be/controllers"
	"smrms-be/metrics"
	"smrms-be/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs. Redis may be nil, which turns
// the issue rate limit off.
type Deps struct {
	Auth      *controllers.AuthController
	Issues    *controllers.IssueController
	Buildings *controllers.BuildingController
	Users     *controllers.UserController
	Stats     *controllers.StatsController

	JWTSecret        string
	ServiceToken     string
	CORSOrigins      []string
	Redis            *redis.Client
	IssueLimitPrefix string
	IssueDailyLimit  int

	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// requireAuth is shared by every route group.
func (d Deps) requireAuth() gin.HandlerFunc {
	return middlewares.AuthMiddleware(d.JWTSecret, d.Log)
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middlewares.RequestLogger(d.Log),
		middlewares.RequestMetrics(d.Metrics),
		cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.ServiceTokenHeader},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	AuthRoutes(r, d)
	IssueRoutes(r, d)
	BuildingRoutes(r, d)
	UserRoutes(r, d)
	StatsRoutes(r, d)
	return r
}
