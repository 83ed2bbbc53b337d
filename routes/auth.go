package routes

import (
	"tareahub/controllers"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers the public authentication endpoints
func SetupAuthRoutes(router *gin.Engine, auth *controllers.AuthController) {
	router.POST("/api/users/register", auth.Register)
	router.POST("/api/users/login", auth.Login)
}
