package routes

import (
	"smrms-be/middlewares"
	"smrms-be/models"

	"github.com/gin-gonic/gin"
)

// UserRoutes covers staff, students and raw actor removal; all admin only.
func UserRoutes(r *gin.Engine, d Deps) {
	api := r.Group("/api", d.requireAuth(), middlewares.RequireRole(models.RoleAdmin))
	{
		api.GET("/staff", d.Users.ListStaff)
		api.POST("/staff", d.Users.CreateStaff)
		api.DELETE("/staff/:id", d.Users.DeleteStaff)
		api.GET("/students", d.Users.ListStudents)
		api.DELETE("/students/:id", d.Users.DeleteStudent)
		api.DELETE("/actors/:id", d.Users.DeleteActor)
	}
}
