package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/yukikurage/pinboard-api/internal/models"
	"github.com/yukikurage/pinboard-api/internal/utils"
	"gorm.io/gorm"
)

// ErrDuplicateKey is returned when an insert collides with a unique or
// primary key constraint.
var ErrDuplicateKey = errors.New("repository: duplicate key")

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create inserts a new user. It returns ErrDuplicateKey when the email is taken.
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by exact email
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// TaskRepository defines the interface for task data access. Every method
// except Create takes the owner ID and never touches rows of other users.
type TaskRepository interface {
	// Create inserts a new task. It returns ErrDuplicateKey when the ID is taken.
	Create(ctx context.Context, task *models.Task) error

	// FindForOwner finds a task by ID among the owner's tasks
	FindForOwner(ctx context.Context, ownerID uint64, id string) (*models.Task, error)

	// ListForOwner retrieves the owner's tasks with filtering and optional pagination
	ListForOwner(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// UpdateForOwner loads the owner's task, applies mutate and persists the
	// result in one transaction
	UpdateForOwner(ctx context.Context, ownerID uint64, id string, mutate func(*models.Task) error) (*models.Task, error)

	// DeleteForOwner soft deletes the owner's task
	DeleteForOwner(ctx context.Context, ownerID uint64, id string) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	OwnerID    uint64
	Status     *string
	Pagination *utils.PaginationParams
}

// isDuplicateKey reports whether err is a unique constraint violation.
// Drivers without error translation are matched by message.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
