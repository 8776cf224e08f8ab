package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/pinboard-api/internal/constants"
	apierrors "github.com/yukikurage/pinboard-api/internal/errors"
	"github.com/yukikurage/pinboard-api/internal/models"
	"github.com/yukikurage/pinboard-api/internal/services"
)

// TaskFinder loads a task scoped to its owner.
type TaskFinder interface {
	GetTask(ctx context.Context, ownerID uint64, taskID string) (*models.Task, error)
}

// RequireTaskAccess loads the task named by the :id parameter among the
// caller's own tasks. Missing and foreign tasks get the same 404.
func RequireTaskAccess(tasks TaskFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		task, err := tasks.GetTask(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrTaskNotFound) {
				apierrors.NotFound(c, "Task not found")
			} else {
				_ = c.Error(err)
				apierrors.InternalError(c, "")
			}
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyTask, task)
		c.Next()
	}
}

// GetTask retrieves the task loaded by RequireTaskAccess
func GetTask(c *gin.Context) (*models.Task, bool) {
	v, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return nil, false
	}
	task, ok := v.(*models.Task)
	return task, ok
}
