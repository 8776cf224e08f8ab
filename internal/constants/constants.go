package constants

const (
	// ContextKeyUserID is the gin context key holding the authenticated user ID
	ContextKeyUserID = "user_id"

	// ContextKeyTask is the gin context key holding the owner-scoped task
	ContextKeyTask = "task"
)

// Task defaults applied on creation
const (
	DefaultTaskTitle    = "Untitled"
	DefaultTaskPriority = "Medium"
	DefaultGoogleName   = "Google User"
)

// Pagination limits
const (
	MinPageSize     = 1
	DefaultPageSize = 50
	MaxPageSize     = 200
)

const (
	// MaxTaskIDAttempts bounds regeneration of a task ID after a primary key collision
	MaxTaskIDAttempts = 3

	// MaxAIGeneratedTasks caps the number of drafts returned by the assistant
	MaxAIGeneratedTasks = 20
)
