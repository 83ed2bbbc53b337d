package routes

import (
	"tareahub/controllers"

	"github.com/gin-gonic/gin"
)

// SetupTaskRoutes registers the task CRUD endpoints plus the streak read
// path, which the mobile client fetches from under /tasks
func SetupTaskRoutes(router *gin.RouterGroup, tasks *controllers.TaskController, gamification *controllers.GamificationController) {
	group := router.Group("/api/tasks")
	{
		group.GET("", tasks.ListTasks)
		group.POST("", tasks.CreateTask)
		group.GET("/streak", gamification.GetStreak)
		group.GET("/:id", tasks.GetTask)
		group.PUT("/:id", tasks.UpdateTask)
		group.DELETE("/:id", tasks.DeleteTask)
	}
}
