package handlers

import (
	"net/http"
	"testing"

	"github.com/monocle-dev/scrumboard/db"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/testutil"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createProjectAs(t *testing.T, env *testEnv, user models.User, name string) uint {
	t.Helper()

	code, payload := env.do(http.MethodPost, "/api/projects", &user, map[string]any{"name": name})
	assertStatus(t, http.StatusCreated, code, payload)
	return idOf(t, payload, "project")
}

func TestCreateProjectMakesCallerOwner(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, "alice", types.RoleStudent)

	code, payload := env.do(http.MethodPost, "/api/projects", &user, map[string]any{
		"name":           "Capstone",
		"discordWebhook": "https://discord.com/api/webhooks/1/abc",
	})
	assertStatus(t, http.StatusCreated, code, payload)

	project := object(t, payload, "project")
	assert.Equal(t, "Capstone", project["name"])
	assert.Equal(t, "PROJECT_OWNER", project["role"])
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", project["discordWebhook"])

	var member models.TeamMember
	require.NoError(t, db.DB.Where("project_id = ?", idOf(t, payload, "project")).First(&member).Error)
	assert.Equal(t, user.ID, member.UserID)
	assert.Equal(t, types.ProjectOwner, member.Role)

	code, payload = env.do(http.MethodPost, "/api/projects", &user, map[string]any{"name": "Bad", "slackWebhook": "ftp://example.com"})
	assertStatus(t, http.StatusBadRequest, code, payload)
	assert.Equal(t, "slackWebhook must be an http(s) URL", payload["error"])
}

func TestProjectAccess(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	project := utoa(b.project.ID)

	code, payload := env.do(http.MethodGet, "/api/projects", &b.dev, nil)
	assertStatus(t, http.StatusOK, code, payload)
	projects := list(t, payload, "projects")
	require.Len(t, projects, 1)
	assert.Equal(t, "DEVELOPER", projects[0].(map[string]any)["role"])

	code, payload = env.do(http.MethodGet, "/api/projects/"+project, &b.outsider, nil)
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPatch, "/api/projects/"+project, &b.master, map[string]any{"name": "Renamed"})
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPatch, "/api/projects/"+project, &b.owner, map[string]any{"description": "term project"})
	assertStatus(t, http.StatusOK, code, payload)
	assert.Equal(t, "Board", object(t, payload, "project")["name"])
	assert.Equal(t, "term project", object(t, payload, "project")["description"])

	code, payload = env.do(http.MethodGet, "/api/projects/999", &b.owner, nil)
	assertStatus(t, http.StatusNotFound, code, payload)

	code, payload = env.do(http.MethodGet, "/api/projects/abc", &b.owner, nil)
	assertStatus(t, http.StatusBadRequest, code, payload)
}

func TestDeleteProjectRemovesBoard(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	sprintID := postSprint(t, env, b.owner, b.project.ID)
	storyID := postStory(t, env, b.owner, map[string]any{"title": "Story", "projectId": b.project.ID, "sprintId": sprintID})
	postTask(t, env, b.owner, map[string]any{"title": "Task", "projectId": b.project.ID, "userStoryId": storyID})

	code, payload := env.do(http.MethodDelete, "/api/projects/"+utoa(b.project.ID), &b.master, nil)
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodDelete, "/api/projects/"+utoa(b.project.ID), &b.owner, nil)
	assertStatus(t, http.StatusOK, code, payload)

	for _, model := range []any{&models.Sprint{}, &models.UserStory{}, &models.Task{}, &models.TeamMember{}} {
		var count int64
		require.NoError(t, db.DB.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}

	code, payload = env.do(http.MethodGet, "/api/projects/"+utoa(b.project.ID), &b.owner, nil)
	assertStatus(t, http.StatusNotFound, code, payload)
}

func TestMembers(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	base := "/api/projects/" + utoa(b.project.ID) + "/members"
	newcomer := testutil.CreateUser(t, "newcomer", types.RoleStudent)

	code, payload := env.do(http.MethodGet, base, &b.dev, nil)
	assertStatus(t, http.StatusOK, code, payload)
	assert.Len(t, list(t, payload, "members"), 3)

	code, payload = env.do(http.MethodPost, base, &b.master, map[string]any{"userId": newcomer.ID, "role": "DEVELOPER"})
	assertStatus(t, http.StatusForbidden, code, payload)

	for _, body := range []map[string]any{
		{"email": "nobody@example.com", "role": "DEVELOPER"},
		{"email": "newcomer@example.com", "role": "DEVELOPER"},
		{"userId": 9999, "role": "DEVELOPER"},
	} {
		code, payload = env.do(http.MethodPost, base, &b.dev, body)
		assertStatus(t, http.StatusForbidden, code, payload)
	}

	code, payload = env.do(http.MethodPost, base, &b.owner, map[string]any{"email": "nobody@example.com", "role": "DEVELOPER"})
	assertStatus(t, http.StatusBadRequest, code, payload)
	assert.Equal(t, "No user with email nobody@example.com", payload["error"])

	code, payload = env.do(http.MethodPost, base, &b.owner, map[string]any{"email": "NEWCOMER@example.com", "role": "developer"})
	assertStatus(t, http.StatusCreated, code, payload)
	assert.EqualValues(t, newcomer.ID, object(t, payload, "member")["userId"])
	assert.Equal(t, "DEVELOPER", object(t, payload, "member")["role"])

	code, payload = env.do(http.MethodPost, base, &b.owner, map[string]any{"userId": newcomer.ID, "role": "DEVELOPER"})
	assertStatus(t, http.StatusBadRequest, code, payload)
	assert.Equal(t, "User is already a member of this project", payload["error"])

	code, payload = env.do(http.MethodPost, base, &b.owner, map[string]any{"userId": newcomer.ID, "role": "CEO"})
	assertStatus(t, http.StatusBadRequest, code, payload)

	code, payload = env.do(http.MethodPatch, base+"/"+utoa(newcomer.ID), &b.owner, map[string]any{"role": "SCRUM_MASTER"})
	assertStatus(t, http.StatusOK, code, payload)
	assert.Equal(t, "SCRUM_MASTER", object(t, payload, "member")["role"])

	code, payload = env.do(http.MethodPatch, base+"/"+utoa(b.owner.ID), &b.owner, map[string]any{"role": "DEVELOPER"})
	assertStatus(t, http.StatusBadRequest, code, payload)
	assert.Equal(t, "A project must keep at least one PROJECT_OWNER", payload["error"])

	code, payload = env.do(http.MethodDelete, base+"/"+utoa(b.owner.ID), &b.owner, nil)
	assertStatus(t, http.StatusBadRequest, code, payload)

	code, payload = env.do(http.MethodDelete, base+"/"+utoa(b.master.ID), &b.dev, nil)
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodDelete, base+"/"+utoa(b.dev.ID), &b.dev, nil)
	assertStatus(t, http.StatusOK, code, payload)

	code, payload = env.do(http.MethodDelete, base+"/"+utoa(b.dev.ID), &b.owner, nil)
	assertStatus(t, http.StatusNotFound, code, payload)
	assert.Equal(t, "Member not found", payload["error"])
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	s := seedStaff(t)

	code, payload := env.do(http.MethodGet, "/api/users", &s.teacher, nil)
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodGet, "/api/users?role=teacher", &s.admin, nil)
	assertStatus(t, http.StatusOK, code, payload)
	assert.Len(t, list(t, payload, "users"), 2)

	code, payload = env.do(http.MethodPatch, "/api/users/"+utoa(s.student.ID)+"/role", &s.admin, map[string]any{"role": "teacher"})
	assertStatus(t, http.StatusOK, code, payload)
	assert.Equal(t, "teacher", object(t, payload, "user")["role"])

	code, payload = env.do(http.MethodPatch, "/api/users/"+utoa(s.admin.ID)+"/role", &s.admin, map[string]any{"role": "student"})
	assertStatus(t, http.StatusBadRequest, code, payload)

	code, payload = env.do(http.MethodPatch, "/api/users/"+utoa(s.student.ID)+"/role", &s.teacher, map[string]any{"role": "admin"})
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPatch, "/api/users/999/role", &s.admin, map[string]any{"role": "admin"})
	assertStatus(t, http.StatusNotFound, code, payload)
}
