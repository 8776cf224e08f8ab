package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/pinboard-api/internal/middleware"
)

// RegisterRoutes mounts the public API on r.
func RegisterRoutes(r gin.IRouter, authHandler *AuthHandler, taskHandler *TaskHandler, validator middleware.TokenValidator, tasks middleware.TaskFinder) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Auth routes (public)
	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/google", authHandler.GoogleLogin)
		auth.GET("/me", middleware.RequireAuth(validator), authHandler.GetCurrentUser)
	}

	// Task routes (protected)
	taskRoutes := r.Group("/tasks")
	taskRoutes.Use(middleware.RequireAuth(validator))
	{
		taskRoutes.GET("", taskHandler.ListTasks)
		taskRoutes.POST("", taskHandler.CreateTask)
		taskRoutes.POST("/generate", taskHandler.GenerateTasks)
		taskRoutes.GET("/:id", middleware.RequireTaskAccess(tasks), taskHandler.GetTask)
		taskRoutes.PUT("/:id", middleware.RequireTaskAccess(tasks), taskHandler.UpdateTask)
		taskRoutes.PATCH("/:id", middleware.RequireTaskAccess(tasks), taskHandler.UpdateTask)
		taskRoutes.DELETE("/:id", middleware.RequireTaskAccess(tasks), taskHandler.DeleteTask)
	}
}
