package routes

import (
	"smrms-be/middlewares"
	"smrms-be/models"

	"github.com/gin-gonic/gin"
)

func BuildingRoutes(r *gin.Engine, d Deps) {
	admin := middlewares.RequireRole(models.RoleAdmin)

	building := r.Group("/api/buildings", d.requireAuth())
	{
		building.GET("", d.Buildings.ListActive)
		building.GET("/all", admin, d.Buildings.ListAll)
		building.GET("/code/:code", d.Buildings.GetByCode)
		building.GET("/:id/issues", d.Issues.ListByBuilding)
		building.POST("", admin, d.Buildings.Create)
		building.PUT("/:id", admin, d.Buildings.Update)
		building.DELETE("/:id", admin, d.Buildings.Deactivate)
	}
}
