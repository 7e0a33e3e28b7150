package routes

import (
	"smrms-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, d Deps) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", d.Auth.Register)
		auth.POST("/login", d.Auth.Login)
		auth.POST("/logout", d.Auth.Logout)
		auth.POST("/external", middlewares.RequireServiceToken(d.ServiceToken), d.Auth.External)
		auth.GET("/me", d.requireAuth(), d.Auth.Me)
	}
}
