package services

import (
	"sort"
	"time"

	"github.com/yukikurage/pinboard-api/internal/models"
)

var priorityWeights = map[string]int{
	"Low":    1,
	"Medium": 2,
	"High":   4,
	"Urgent": 8,
}

// Layouts accepted for free-form deadlines, most specific first.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// UrgencyScore ranks a task for the urgency ordering. Completed tasks score -1
// so they always sort last.
func UrgencyScore(task *models.Task, now time.Time) int {
	if task.Status == models.TaskStatusCompleted {
		return -1
	}
	return deadlineWeight(task.Deadline, now) + priorityWeights[task.Priority]
}

func deadlineWeight(deadline *string, now time.Time) int {
	if deadline == nil {
		return 0
	}
	due, ok := parseDeadline(*deadline, now.Location())
	if !ok {
		return 0
	}

	left := due.Sub(now)
	switch {
	case left < 0:
		return 20
	case left < 24*time.Hour:
		return 10
	case left < 48*time.Hour:
		return 5
	case left < 7*24*time.Hour:
		return 2
	default:
		return 0
	}
}

func parseDeadline(value string, loc *time.Location) (time.Time, bool) {
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortByUrgency orders tasks most urgent first. Ties keep their existing order.
func SortByUrgency(tasks []models.Task, now time.Time) {
	scores := make(map[string]int, len(tasks))
	for i := range tasks {
		scores[tasks[i].ID] = UrgencyScore(&tasks[i], now)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return scores[tasks[i].ID] > scores[tasks[j].ID]
	})
}
