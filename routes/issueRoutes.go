package routes

import (
	"smrms-be/middlewares"
	"smrms-be/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, d Deps) {
	limiter := middlewares.IssueRateLimiter(d.Redis, d.IssueLimitPrefix, d.IssueDailyLimit, d.Log)

	issue := r.Group("/api/issues", d.requireAuth())
	{
		issue.POST("", limiter, d.Issues.Create)
		issue.GET("", d.Issues.List)
		issue.GET("/:id", d.Issues.Get)
		issue.PUT("/:id", middlewares.RequireRole(models.RoleMaintenanceStaff, models.RoleAdmin), d.Issues.Update)
		issue.DELETE("/:id", middlewares.RequireRole(models.RoleAdmin), d.Issues.Delete)
	}
}
