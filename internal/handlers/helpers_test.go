package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/pinboard-api/internal/dto"
	"github.com/yukikurage/pinboard-api/internal/identity"
	"github.com/yukikurage/pinboard-api/internal/logger"
	"github.com/yukikurage/pinboard-api/internal/metrics"
	"github.com/yukikurage/pinboard-api/internal/password"
	"github.com/yukikurage/pinboard-api/internal/repository"
	"github.com/yukikurage/pinboard-api/internal/services"
	"github.com/yukikurage/pinboard-api/internal/testutil"
	"github.com/yukikurage/pinboard-api/internal/token"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGoogle accepts assertions of the form "google:<email>".
type fakeGoogle struct{}

func (fakeGoogle) Verify(_ context.Context, assertion string) (*identity.Identity, error) {
	email, ok := strings.CutPrefix(assertion, "google:")
	if !ok {
		return nil, identity.ErrInvalidAssertion
	}
	return &identity.Identity{Subject: "g-" + email, Email: email, Name: "", Picture: "https://example.com/p.png"}, nil
}

type testEnv struct {
	db          *gorm.DB
	router      *gin.Engine
	tokens      *token.Manager
	taskService *services.TaskService
	registry    *prometheus.Registry
}

type envOptions struct {
	verifier services.IdentityVerifier
	ai       *services.AIService
}

func setupTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := logger.NewNop()

	tokens, err := token.NewManager("handler-secret", 7*24*time.Hour)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	authService := services.NewAuthService(repository.NewUserRepository(db), password.NewBcryptHasher(4), tokens, opts.verifier, log)
	taskService := services.NewTaskService(repository.NewTaskRepository(db), opts.ai, log)

	router := gin.New()
	RegisterRoutes(router,
		NewAuthHandler(authService, collector, log),
		NewTaskHandler(taskService, log),
		tokens, taskService)

	return &testEnv{
		db:          db,
		router:      router,
		tokens:      tokens,
		taskService: taskService,
		registry:    registry,
	}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, email, pw string) dto.AuthResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "Test", "email": email, "password": pw})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) createTask(t *testing.T, bearer string, body any) dto.TaskDTO {
	t.Helper()
	w := e.do(t, http.MethodPost, "/tasks", bearer, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task dto.TaskDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
