package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TaskStatusPending   = "Pending"
	TaskStatusCompleted = "Completed"
)

// Task belongs to exactly one user for its whole lifetime.
type Task struct {
	ID          string         `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID      uint64         `gorm:"not null;index:idx_tasks_owner,priority:1" json:"userId"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Deadline    *string        `gorm:"type:varchar(100)" json:"deadline"`
	Priority    string         `gorm:"type:varchar(20)" json:"priority"`
	Status      string         `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt   time.Time      `gorm:"index:idx_tasks_owner,priority:2" json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkStatus applies a status change, stamping CompletedAt when the task
// enters Completed. CompletedAt is never cleared.
func (t *Task) MarkStatus(status string, now time.Time) {
	previous := t.Status
	t.Status = status
	if status == TaskStatusCompleted && previous != TaskStatusCompleted {
		t.CompletedAt = &now
	}
}
