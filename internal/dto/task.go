package dto

import (
	"time"

	"github.com/yukikurage/pinboard-api/internal/models"
	"github.com/yukikurage/pinboard-api/internal/services"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID           uint64              `json:"id"`
	Email        string              `json:"email"`
	Name         string              `json:"name"`
	ProfilePic   *string             `json:"profile_pic,omitempty"`
	AuthProvider models.AuthProvider `json:"auth_provider"`
}

// AuthResponse is returned by every sign-in endpoint
type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          string     `json:"id"`
	UserID      uint64     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Deadline    *string    `json:"deadline"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// TaskDraftDTO is an unsaved task proposed by the assistant
type TaskDraftDTO struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Deadline    *string `json:"deadline"`
	Priority    string  `json:"priority"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		ProfilePic:   user.ProfilePictureURL,
		AuthProvider: user.AuthProvider,
	}
}

// ToAuthResponse converts a sign-in result to AuthResponse
func ToAuthResponse(result *services.AuthResult) AuthResponse {
	return AuthResponse{
		Token: result.Token,
		User:  ToUserDTO(*result.User),
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		UserID:      task.UserID,
		Title:       task.Title,
		Description: task.Description,
		Deadline:    task.Deadline,
		Priority:    task.Priority,
		Status:      task.Status,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
	}
}

// ToTaskDTOs converts a slice of tasks, never returning nil
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return items
}

// ToTaskDraftDTOs converts assistant output to TaskDraftDTOs
func ToTaskDraftDTOs(drafts []services.GeneratedTask) []TaskDraftDTO {
	items := make([]TaskDraftDTO, len(drafts))
	for i, draft := range drafts {
		items[i] = TaskDraftDTO{
			Title:       draft.Title,
			Description: draft.Description,
			Deadline:    draft.Deadline,
			Priority:    draft.Priority,
		}
	}
	return items
}
