package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/middleware"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/testutil"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t      *testing.T
	engine *gin.Engine
}

// newTestEnv serves the API over a fresh in-memory database with real
// session authentication.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testutil.OpenDB(t)
	return &testEnv{t: t, engine: testEngine(middleware.AuthMiddleware())}
}

func testEngine(authn gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidation()

	r := gin.New()
	r.GET("/", middleware.RequirePageAuth(), Home)
	r.GET("/api/health", HealthCheck)

	authGroup := r.Group("/api/auth")
	authGroup.POST("/signup", Signup)
	authGroup.POST("/login", Login)
	authGroup.POST("/logout", Logout)
	authGroup.GET("/me", authn, Me)
	authGroup.PATCH("/me", authn, UpdateMe)
	authGroup.DELETE("/me", authn, DeleteMe)

	api := r.Group("/api", authn)

	for path, h := range map[string][4]gin.HandlerFunc{
		"sprints":      {CreateSprint, GetSprints, UpdateSprint, DeleteSprint},
		"user-stories": {CreateUserStory, GetUserStories, UpdateUserStory, DeleteUserStory},
		"tasks":        {CreateTask, GetTasks, UpdateTask, DeleteTask},
		"rubrics":      {CreateRubric, GetRubrics, UpdateRubric, DeleteRubric},
		"evaluations":  {CreateEvaluation, GetEvaluations, UpdateEvaluation, DeleteEvaluation},
		"comments":     {CreateComment, GetComments, UpdateComment, DeleteComment},
	} {
		api.POST("/"+path, h[0])
		api.GET("/"+path, h[1])
		api.PUT("/"+path, h[2])
		api.DELETE("/"+path, h[3])
	}

	api.POST("/projects", CreateProject)
	api.GET("/projects", ListProjects)
	api.GET("/projects/:project_id", GetProject)
	api.PATCH("/projects/:project_id", UpdateProject)
	api.DELETE("/projects/:project_id", DeleteProject)
	api.GET("/projects/:project_id/members", ListMembers)
	api.POST("/projects/:project_id/members", AddMember)
	api.PATCH("/projects/:project_id/members/:user_id", UpdateMember)
	api.DELETE("/projects/:project_id/members/:user_id", RemoveMember)

	api.GET("/users", ListUsers)
	api.PATCH("/users/:user_id/role", UpdateUserRole)

	api.GET("/ws/:project_id", WebSocket(nil))

	return r
}

// do sends body (a raw JSON string or a value to marshal) as user and
// decodes the JSON response.
func (e *testEnv) do(method, target string, user *models.User, body any) (int, map[string]any) {
	e.t.Helper()

	rec := e.serve(method, target, user, body)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}

	return rec.Code, payload
}

func (e *testEnv) serve(method, target string, user *models.User, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+testutil.SessionToken(e.t, *user))
	}

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

type board struct {
	owner, master, dev, outsider models.User
	project                      models.Project
}

// seedBoard creates a project with one member of each role and an outsider.
func seedBoard(t *testing.T) board {
	t.Helper()

	b := board{
		owner:    testutil.CreateUser(t, "owner", types.RoleStudent),
		master:   testutil.CreateUser(t, "master", types.RoleStudent),
		dev:      testutil.CreateUser(t, "dev", types.RoleStudent),
		outsider: testutil.CreateUser(t, "outsider", types.RoleStudent),
	}

	b.project = testutil.CreateProject(t, "Board", b.owner)
	testutil.AddMember(t, b.project, b.master, types.ScrumMaster)
	testutil.AddMember(t, b.project, b.dev, types.Developer)

	return b
}

func object(t *testing.T, payload map[string]any, key string) map[string]any {
	t.Helper()

	value, ok := payload[key].(map[string]any)
	require.True(t, ok, "missing %q in %v", key, payload)
	return value
}

func list(t *testing.T, payload map[string]any, key string) []any {
	t.Helper()

	value, ok := payload[key].([]any)
	require.True(t, ok, "missing %q in %v", key, payload)
	return value
}

func idOf(t *testing.T, payload map[string]any, key string) uint {
	t.Helper()

	id, ok := object(t, payload, key)["id"].(float64)
	require.True(t, ok, "missing %s.id in %v", key, payload)
	return uint(id)
}

// withoutTimestamps drops fields the database may re-render.
func withoutTimestamps(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if k == "createdAt" || k == "updatedAt" {
			continue
		}
		out[k] = v
	}
	return out
}

func assertStatus(t *testing.T, want, got int, payload map[string]any) {
	t.Helper()
	require.Equal(t, want, got, "response: %v", payload)
}

func utoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func byID(base string, id uint) string {
	return base + "?id=" + utoa(id)
}
