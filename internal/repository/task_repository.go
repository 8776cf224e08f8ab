package repository

import (
	"context"
	"fmt"

	"github.com/yukikurage/pinboard-api/internal/database"
	"github.com/yukikurage/pinboard-api/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return err
	}
	return nil
}

// FindForOwner finds a task by ID scoped to its owner
func (r *GormTaskRepository) FindForOwner(ctx context.Context, ownerID uint64, id string) (*models.Task, error) {
	return findForOwner(r.db.WithContext(ctx), ownerID, id)
}

func findForOwner(db *gorm.DB, ownerID uint64, id string) (*models.Task, error) {
	var task models.Task
	if err := db.Scopes(database.OwnedBy(ownerID)).
		Where("tasks.id = ?", id).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListForOwner retrieves tasks with filtering and pagination
func (r *GormTaskRepository) ListForOwner(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{}).Scopes(database.OwnedBy(filter.OwnerID))

	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("tasks.created_at DESC").Order("tasks.id")
	if filter.Pagination != nil {
		listQuery = listQuery.Scopes(database.Paginate(*filter.Pagination))
	}

	tasks := []models.Task{}
	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// UpdateForOwner applies mutate to the owner's task inside a transaction
func (r *GormTaskRepository) UpdateForOwner(ctx context.Context, ownerID uint64, id string, mutate func(*models.Task) error) (*models.Task, error) {
	var updated *models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := findForOwner(tx, ownerID, id)
		if err != nil {
			return err
		}

		if err := mutate(task); err != nil {
			return err
		}

		// Owner and creation time are immutable and never written back.
		if err := tx.Model(&models.Task{}).
			Scopes(database.OwnedBy(ownerID)).
			Where("tasks.id = ?", id).
			Updates(map[string]any{
				"title":        task.Title,
				"description":  task.Description,
				"deadline":     task.Deadline,
				"priority":     task.Priority,
				"status":       task.Status,
				"completed_at": task.CompletedAt,
			}).Error; err != nil {
			return err
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteForOwner soft deletes the owner's task
func (r *GormTaskRepository) DeleteForOwner(ctx context.Context, ownerID uint64, id string) error {
	result := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(ownerID)).
		Where("tasks.id = ?", id).
		Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
