package routes

import (
	"tareahub/controllers"
	"tareahub/websocket"

	"github.com/gin-gonic/gin"
)

// SetupGamificationRoutes registers the achievements list, the profile read
// path, and the websocket push channel
func SetupGamificationRoutes(router *gin.RouterGroup, gamification *controllers.GamificationController, profile *controllers.ProfileController, hub *websocket.Hub) {
	router.GET("/api/achievements", gamification.GetAchievements)
	router.GET("/api/users/profile", profile.GetProfile)
	router.GET("/ws/gamification", hub.Handler)
}
