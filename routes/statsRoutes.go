package routes

import (
	"smrms-be/middlewares"
	"smrms-be/models"

	"github.com/gin-gonic/gin"
)

func StatsRoutes(r *gin.Engine, d Deps) {
	stats := r.Group("/api/stats", d.requireAuth(), middlewares.RequireRole(models.RoleAdmin, models.RoleMaintenanceStaff))
	{
		stats.GET("/dashboard", d.Stats.Dashboard)
		stats.GET("/monthly", d.Stats.Monthly)
		stats.GET("/export", middlewares.RequireRole(models.RoleAdmin), d.Stats.Export)
	}
}
