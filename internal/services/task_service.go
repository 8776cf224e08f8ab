package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/pinboard-api/internal/constants"
	"github.com/yukikurage/pinboard-api/internal/models"
	"github.com/yukikurage/pinboard-api/internal/repository"
	"github.com/yukikurage/pinboard-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrTitleEmpty             = errors.New("title cannot be empty")
	ErrTaskIDExhausted        = errors.New("could not allocate a unique task id")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
)

// Sort orders for ListTasks
const (
	SortOrderCreated = "created"
	SortOrderUrgency = "urgency"
)

// TaskService handles task business logic. Every operation is scoped to the
// owner passed in by the caller.
type TaskService struct {
	taskRepo  repository.TaskRepository
	aiService *AIService
	log       *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewTaskService creates a new TaskService. aiService may be nil.
func NewTaskService(taskRepo repository.TaskRepository, aiService *AIService, log *slog.Logger) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		aiService: aiService,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	OwnerID    uint64
	Status     *string
	SortBy     string
	Pagination *utils.PaginationParams
}

// CreateTaskInput represents input for creating a task. Nil fields take defaults.
type CreateTaskInput struct {
	OwnerID     uint64
	Title       *string
	Description *string
	Deadline    *string
	Priority    *string
}

// UpdateTaskInput is a merge patch: nil fields are left unchanged.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Deadline      *string
	ClearDeadline bool
	Priority      *string
	Status        *string
}

// ListTasks returns the owner's tasks
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	filter := repository.TaskFilter{
		OwnerID:    input.OwnerID,
		Status:     input.Status,
		Pagination: input.Pagination,
	}

	// Urgency depends on the clock, so the whole set is ranked before paging.
	if input.SortBy == SortOrderUrgency {
		filter.Pagination = nil
	}

	tasks, total, err := s.taskRepo.ListForOwner(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	if input.SortBy == SortOrderUrgency {
		SortByUrgency(tasks, s.now())
		if input.Pagination != nil {
			tasks = page(tasks, *input.Pagination)
		}
	}

	return tasks, total, nil
}

// GetTask returns one of the owner's tasks
func (s *TaskService) GetTask(ctx context.Context, ownerID uint64, taskID string) (*models.Task, error) {
	task, err := s.taskRepo.FindForOwner(ctx, ownerID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// CreateTask creates a task owned by input.OwnerID
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	task := &models.Task{
		UserID:      input.OwnerID,
		Title:       constants.DefaultTaskTitle,
		Description: "",
		Priority:    constants.DefaultTaskPriority,
		Status:      models.TaskStatusPending,
		CreatedAt:   s.now(),
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleEmpty
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	task.Deadline = normalizeDeadline(input.Deadline)
	if input.Priority != nil && strings.TrimSpace(*input.Priority) != "" {
		task.Priority = strings.TrimSpace(*input.Priority)
	}

	for attempt := 1; attempt <= constants.MaxTaskIDAttempts; attempt++ {
		task.ID = s.newID()
		err := s.taskRepo.Create(ctx, task)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to create task: %w", err)
		}
		s.log.WarnContext(ctx, "task id collision", "task_id", task.ID, "attempt", attempt)
	}

	return nil, ErrTaskIDExhausted
}

// UpdateTask applies a partial update to one of the owner's tasks
func (s *TaskService) UpdateTask(ctx context.Context, ownerID uint64, taskID string, input UpdateTaskInput) (*models.Task, error) {
	var title string
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleEmpty
		}
	}

	task, err := s.taskRepo.UpdateForOwner(ctx, ownerID, taskID, func(task *models.Task) error {
		if input.Title != nil {
			task.Title = title
		}
		if input.Description != nil {
			task.Description = *input.Description
		}
		if input.ClearDeadline {
			task.Deadline = nil
		} else if input.Deadline != nil {
			task.Deadline = normalizeDeadline(input.Deadline)
		}
		if input.Priority != nil && strings.TrimSpace(*input.Priority) != "" {
			task.Priority = strings.TrimSpace(*input.Priority)
		}
		if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
			task.MarkStatus(strings.TrimSpace(*input.Status), s.now())
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// DeleteTask deletes one of the owner's tasks
func (s *TaskService) DeleteTask(ctx context.Context, ownerID uint64, taskID string) error {
	if err := s.taskRepo.DeleteForOwner(ctx, ownerID, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// GenerateTasks drafts tasks from free text. Drafts are not persisted.
func (s *TaskService) GenerateTasks(ctx context.Context, text string) ([]GeneratedTask, error) {
	if s.aiService == nil {
		return nil, ErrAIServiceNotConfigured
	}

	drafts, err := s.aiService.GenerateTasksFromText(ctx, text, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	valid := make([]GeneratedTask, 0, len(drafts))
	for _, draft := range drafts {
		draft.Title = strings.TrimSpace(draft.Title)
		if draft.Title == "" {
			continue
		}
		draft.Priority = normalizePriority(draft.Priority)
		draft.Deadline = normalizeDeadline(draft.Deadline)
		valid = append(valid, draft)
		if len(valid) == constants.MaxAIGeneratedTasks {
			break
		}
	}

	if len(valid) == 0 {
		return nil, ErrAINoTasksGenerated
	}

	return valid, nil
}

func normalizeDeadline(deadline *string) *string {
	if deadline == nil {
		return nil
	}
	value := strings.TrimSpace(*deadline)
	if value == "" {
		return nil
	}
	return &value
}

func normalizePriority(priority string) string {
	for known := range priorityWeights {
		if strings.EqualFold(known, strings.TrimSpace(priority)) {
			return known
		}
	}
	return constants.DefaultTaskPriority
}

func page(tasks []models.Task, params utils.PaginationParams) []models.Task {
	if params.Offset < 0 || params.Offset >= len(tasks) {
		return []models.Task{}
	}
	end := params.Offset + params.Limit
	if params.Limit < 0 || end > len(tasks) || end < params.Offset {
		end = len(tasks)
	}
	return tasks[params.Offset:end]
}
