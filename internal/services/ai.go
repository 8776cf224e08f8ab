package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

type AIService struct {
	client *openai.Client
	model  string
}

// GeneratedTask is a draft proposed by the assistant. It has no owner or ID
// until the client submits it through the regular create endpoint.
type GeneratedTask struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Deadline    *string `json:"deadline"`
	Priority    string  `json:"priority"`
}

// NewAIService creates a client for an OpenAI-compatible chat API. baseURL
// may be empty to use the public endpoint.
func NewAIService(apiKey, baseURL, model string) *AIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &AIService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// GenerateTasksFromText asks the model to break text into actionable tasks
func (s *AIService) GenerateTasksFromText(ctx context.Context, text string, now time.Time) ([]GeneratedTask, error) {
	if s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	prompt := fmt.Sprintf(`You are a task planning assistant. Break the following text into concrete, actionable tasks.

Current time: %s

Text:
%s

Respond with a JSON array only, no commentary:
[
  {
    "title": "short task title",
    "description": "one or two sentences of detail",
    "deadline": "ISO8601 timestamp such as 2025-10-28T23:59:00Z, or null when no deadline is implied",
    "priority": "one of Low, Medium, High, Urgent"
  }
]

Rules:
- Return [] when the text contains no tasks
- Resolve relative dates ("tomorrow", "next week") against the current time
- Return at most 20 tasks`, now.Format(time.RFC3339), text)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)

	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)

	var tasks []GeneratedTask
	if err := json.Unmarshal([]byte(content), &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return tasks, nil
}

// Models often wrap JSON in a ```json fence despite being told not to.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[i+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
