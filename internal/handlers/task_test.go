package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/pinboard-api/internal/dto"
	"github.com/yukikurage/pinboard-api/internal/services"
	"github.com/yukikurage/pinboard-api/internal/token"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	suite.Suite
	env   *testEnv
	alice string
	bob   string
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	suite.env = setupTestEnv(suite.T(), envOptions{})
	suite.alice = suite.env.register(suite.T(), "alice@example.com", "alicepw").Token
	suite.bob = suite.env.register(suite.T(), "bob@example.com", "bobpw").Token
}

func (suite *TaskHandlerTestSuite) decodeTask(w *httptest.ResponseRecorder) dto.TaskDTO {
	var task dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

func (suite *TaskHandlerTestSuite) decodeTasks(w *httptest.ResponseRecorder) []dto.TaskDTO {
	var tasks []dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tasks))
	return tasks
}

func (suite *TaskHandlerTestSuite) TestRequiresAuthentication() {
	task := suite.env.createTask(suite.T(), suite.alice, map[string]string{"title": "x"})

	requests := []struct {
		method, path string
	}{
		{http.MethodGet, "/tasks"},
		{http.MethodPost, "/tasks"},
		{http.MethodGet, "/tasks/" + task.ID},
		{http.MethodPut, "/tasks/" + task.ID},
		{http.MethodPatch, "/tasks/" + task.ID},
		{http.MethodDelete, "/tasks/" + task.ID},
		{http.MethodPost, "/tasks/generate"},
	}

	for _, r := range requests {
		w := suite.env.do(suite.T(), r.method, r.path, "", map[string]string{"title": "y"})
		suite.Equal(http.StatusUnauthorized, w.Code, "%s %s", r.method, r.path)
		suite.Equal("UNAUTHORIZED", decodeError(suite.T(), w)["code"])
	}
}

func (suite *TaskHandlerTestSuite) TestExpiredTokenRejected() {
	userID, err := suite.env.tokens.Validate(suite.alice)
	suite.Require().NoError(err)

	past, err := token.NewManager("handler-secret", 7*24*time.Hour, token.WithClock(func() time.Time {
		return time.Now().Add(-8 * 24 * time.Hour)
	}))
	suite.Require().NoError(err)
	expired, err := past.Issue(userID)
	suite.Require().NoError(err)

	w := suite.env.do(suite.T(), http.MethodGet, "/tasks", expired, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_Defaults() {
	w := suite.env.do(suite.T(), http.MethodPost, "/tasks", suite.alice, map[string]any{})
	suite.Require().Equal(http.StatusCreated, w.Code)

	var raw map[string]any
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &raw))
	for _, key := range []string{"id", "userId", "title", "description", "deadline", "priority", "status", "createdAt", "completedAt"} {
		suite.Contains(raw, key)
	}

	task := suite.decodeTask(w)
	suite.Len(task.ID, 36)
	suite.Equal("Untitled", task.Title)
	suite.Equal("", task.Description)
	suite.Nil(task.Deadline)
	suite.Equal("Medium", task.Priority)
	suite.Equal("Pending", task.Status)
	suite.Nil(task.CompletedAt)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_EmptyBody() {
	w := suite.env.do(suite.T(), http.MethodPost, "/tasks", suite.alice, nil)
	suite.Equal(http.StatusCreated, w.Code)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_IgnoresOwnerAndStatusFromBody() {
	task := suite.env.createTask(suite.T(), suite.alice, map[string]any{
		"title":  "mine",
		"userId": 999,
		"status": "Completed",
	})

	aliceID, err := suite.env.tokens.Validate(suite.alice)
	suite.Require().NoError(err)
	suite.Equal(aliceID, task.UserID)
	suite.Equal("Pending", task.Status)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_ValidationErrors() {
	for name, body := range map[string]any{
		"blank title":   map[string]any{"title": "  "},
		"wrong type":    map[string]any{"title": 5},
		"malformed":     `{"title":`,
		"title too big": map[string]any{"title": strings.Repeat("a", 201)},
	} {
		w := suite.env.do(suite.T(), http.MethodPost, "/tasks", suite.alice, body)
		suite.Equal(http.StatusBadRequest, w.Code, name)
	}
}

func (suite *TaskHandlerTestSuite) TestCreateAndGet_RoundTrip() {
	created := suite.env.createTask(suite.T(), suite.alice, map[string]any{
		"title":       "Ship it",
		"description": "Before Friday",
		"deadline":    "2026-03-13T17:00",
		"priority":    "Urgent",
	})

	w := suite.env.do(suite.T(), http.MethodGet, "/tasks/"+created.ID, suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	got := suite.decodeTask(w)

	suite.Equal(created.ID, got.ID)
	suite.Equal("Ship it", got.Title)
	suite.Equal("Before Friday", got.Description)
	suite.Require().NotNil(got.Deadline)
	suite.Equal("2026-03-13T17:00", *got.Deadline)
	suite.Equal("Urgent", got.Priority)
	suite.Equal("Pending", got.Status)
	suite.True(created.CreatedAt.Equal(got.CreatedAt))
}

func (suite *TaskHandlerTestSuite) TestCrossUserIsolation() {
	task := suite.env.createTask(suite.T(), suite.alice, map[string]string{"title": "alice only"})
	missingID := "00000000-0000-4000-8000-000000000000"

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		foreign := suite.env.do(suite.T(), method, "/tasks/"+task.ID, suite.bob, map[string]string{"title": "pwned"})
		missing := suite.env.do(suite.T(), method, "/tasks/"+missingID, suite.bob, map[string]string{"title": "pwned"})

		suite.Equal(http.StatusNotFound, foreign.Code, method)
		suite.JSONEq(missing.Body.String(), foreign.Body.String(), method)
	}

	w := suite.env.do(suite.T(), http.MethodGet, "/tasks", suite.bob, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Empty(suite.decodeTasks(w))

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks/"+task.ID, suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("alice only", suite.decodeTask(w).Title)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_PartialPreservesFields() {
	created := suite.env.createTask(suite.T(), suite.alice, map[string]any{
		"title":       "Original",
		"description": "Keep",
		"deadline":    "2026-05-01",
		"priority":    "High",
	})

	for _, method := range []string{http.MethodPatch, http.MethodPut} {
		w := suite.env.do(suite.T(), method, "/tasks/"+created.ID, suite.alice, map[string]string{"title": "Changed by " + method})
		suite.Require().Equal(http.StatusOK, w.Code)
		updated := suite.decodeTask(w)

		suite.Equal("Changed by "+method, updated.Title)
		suite.Equal("Keep", updated.Description)
		suite.Require().NotNil(updated.Deadline)
		suite.Equal("2026-05-01", *updated.Deadline)
		suite.Equal("High", updated.Priority)
		suite.Equal("Pending", updated.Status)
	}
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_NullClearsDeadline() {
	created := suite.env.createTask(suite.T(), suite.alice, map[string]any{"deadline": "2026-05-01"})

	w := suite.env.do(suite.T(), http.MethodPatch, "/tasks/"+created.ID, suite.alice, `{"deadline": null}`)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Nil(suite.decodeTask(w).Deadline)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_BlankTitle() {
	created := suite.env.createTask(suite.T(), suite.alice, map[string]any{"title": "Keep me"})

	w := suite.env.do(suite.T(), http.MethodPatch, "/tasks/"+created.ID, suite.alice, map[string]string{"title": ""})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks/"+created.ID, suite.alice, nil)
	suite.Equal("Keep me", suite.decodeTask(w).Title)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_CompletedAtStampAndKeep() {
	created := suite.env.createTask(suite.T(), suite.alice, map[string]any{"title": "finish"})

	w := suite.env.do(suite.T(), http.MethodPatch, "/tasks/"+created.ID, suite.alice, map[string]string{"status": "Completed"})
	suite.Require().Equal(http.StatusOK, w.Code)
	completed := suite.decodeTask(w)
	suite.Require().NotNil(completed.CompletedAt)

	w = suite.env.do(suite.T(), http.MethodPatch, "/tasks/"+created.ID, suite.alice, map[string]string{"status": "Pending"})
	suite.Require().Equal(http.StatusOK, w.Code)
	reopened := suite.decodeTask(w)
	suite.Equal("Pending", reopened.Status)
	suite.Require().NotNil(reopened.CompletedAt)
	suite.True(completed.CompletedAt.Equal(*reopened.CompletedAt))
}

func (suite *TaskHandlerTestSuite) TestDeleteTask() {
	created := suite.env.createTask(suite.T(), suite.alice, map[string]any{"title": "bye"})

	w := suite.env.do(suite.T(), http.MethodDelete, "/tasks/"+created.ID, suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.env.do(suite.T(), http.MethodDelete, "/tasks/"+created.ID, suite.alice, nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("NOT_FOUND", decodeError(suite.T(), w)["code"])

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks/"+created.ID, suite.alice, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListTasks() {
	first := suite.env.createTask(suite.T(), suite.alice, map[string]any{"title": "first", "priority": "Low"})
	second := suite.env.createTask(suite.T(), suite.alice, map[string]any{"title": "second", "priority": "Urgent"})
	suite.env.createTask(suite.T(), suite.bob, map[string]any{"title": "bob's"})

	w := suite.env.do(suite.T(), http.MethodPatch, "/tasks/"+first.ID, suite.alice, map[string]string{"status": "Completed"})
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks", suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Len(suite.decodeTasks(w), 2)
	suite.Empty(w.Header().Get("X-Total-Count"))

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks?status=Completed", suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	tasks := suite.decodeTasks(w)
	suite.Require().Len(tasks, 1)
	suite.Equal(first.ID, tasks[0].ID)

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks?sort=urgency", suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	tasks = suite.decodeTasks(w)
	suite.Require().Len(tasks, 2)
	suite.Equal(second.ID, tasks[0].ID)

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks?page=1&limit=1", suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Len(suite.decodeTasks(w), 1)
	suite.Equal("2", w.Header().Get("X-Total-Count"))

	w = suite.env.do(suite.T(), http.MethodGet, "/tasks?sort=alphabetical", suite.alice, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListTasks_PageFarPastTheEnd() {
	suite.env.createTask(suite.T(), suite.alice, map[string]any{"title": "first"})
	suite.env.createTask(suite.T(), suite.alice, map[string]any{"title": "second"})

	for _, query := range []string{
		"/tasks?page=46116860184273890&limit=200",
		"/tasks?sort=urgency&page=46116860184273890&limit=200",
		"/tasks?sort=urgency&page=9223372036854775807&limit=1",
	} {
		w := suite.env.do(suite.T(), http.MethodGet, query, suite.alice, nil)
		suite.Require().Equal(http.StatusOK, w.Code, query)
		suite.JSONEq("[]", w.Body.String(), query)
		suite.Equal("2", w.Header().Get("X-Total-Count"), query)
	}
}

func (suite *TaskHandlerTestSuite) TestListTasks_EmptyIsArray() {
	w := suite.env.do(suite.T(), http.MethodGet, "/tasks", suite.alice, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.JSONEq("[]", w.Body.String())
}

func (suite *TaskHandlerTestSuite) TestGenerateTasks_NotConfigured() {
	w := suite.env.do(suite.T(), http.MethodPost, "/tasks/generate", suite.alice, map[string]string{"text": "buy milk"})
	suite.Equal(http.StatusServiceUnavailable, w.Code)
}

func (suite *TaskHandlerTestSuite) TestHealth() {
	w := suite.env.do(suite.T(), http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}

func TestGenerateTasks_Handler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"[{\"title\":\"Call mom\",\"description\":\"\",\"deadline\":null,\"priority\":\"high\"}]"}}]}`))
	}))
	defer srv.Close()

	env := setupTestEnv(t, envOptions{ai: services.NewAIService("k", srv.URL+"/v1", "m")})
	auth := env.register(t, "ai@example.com", "pw")

	w := env.do(t, http.MethodPost, "/tasks/generate", auth.Token, map[string]string{"text": "remember to call mom"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Tasks []dto.TaskDraftDTO `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "Call mom" || resp.Tasks[0].Priority != "High" {
		t.Errorf("unexpected drafts: %+v", resp.Tasks)
	}

	// Drafts are never saved.
	w = env.do(t, http.MethodGet, "/tasks", auth.Token, nil)
	if w.Body.String() != "[]" {
		t.Errorf("expected no saved tasks, got %s", w.Body.String())
	}
}
