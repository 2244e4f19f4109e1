package handlers

import (
	"net/http"
	"testing"

	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postTask(t *testing.T, env *testEnv, user models.User, body map[string]any) uint {
	t.Helper()

	code, payload := env.do(http.MethodPost, "/api/tasks", &user, body)
	assertStatus(t, http.StatusCreated, code, payload)
	return idOf(t, payload, "task")
}

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	sprintID := postSprint(t, env, b.owner, b.project.ID)
	storyID := postStory(t, env, b.owner, map[string]any{"title": "Story", "projectId": b.project.ID})

	code, payload := env.do(http.MethodPost, "/api/tasks", &b.dev, map[string]any{"title": "Nope", "projectId": b.project.ID})
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPost, "/api/tasks", &b.master, map[string]any{
		"title":       "Wire login",
		"projectId":   b.project.ID,
		"sprintId":    sprintID,
		"userStoryId": storyID,
		"assigneeId":  b.dev.ID,
		"priority":    "high",
		"storyPoints": 3,
	})
	assertStatus(t, http.StatusCreated, code, payload)

	task := object(t, payload, "task")
	assert.Equal(t, "pending", task["status"])
	assert.Equal(t, "HIGH", task["priority"])
	assert.EqualValues(t, b.dev.ID, task["assigneeId"])

	code, fetched := env.do(http.MethodGet, byID("/api/tasks", idOf(t, payload, "task")), &b.dev, nil)
	assertStatus(t, http.StatusOK, code, fetched)
	assert.Equal(t, withoutTimestamps(task), withoutTimestamps(object(t, fetched, "task")))
}

func TestCreateTaskReferences(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	other := createProjectAs(t, env, b.owner, "Other")
	foreignStory := postStory(t, env, b.owner, map[string]any{"title": "Elsewhere", "projectId": other})

	tests := []struct {
		name string
		body map[string]any
		err  string
	}{
		{"missing project", map[string]any{"title": "T", "projectId": 999}, "projectId 999 does not exist"},
		{"missing assignee", map[string]any{"title": "T", "projectId": b.project.ID, "assigneeId": 999}, "assigneeId 999 does not exist"},
		{"missing story", map[string]any{"title": "T", "projectId": b.project.ID, "userStoryId": 999}, "userStoryId 999 does not exist"},
		{"foreign story", map[string]any{"title": "T", "projectId": b.project.ID, "userStoryId": foreignStory}, "User story " + utoa(foreignStory) + " does not belong to project " + utoa(b.project.ID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, payload := env.do(http.MethodPost, "/api/tasks", &b.owner, tt.body)
			assertStatus(t, http.StatusBadRequest, code, payload)
			assert.Equal(t, tt.err, payload["error"])
		})
	}
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	id := postTask(t, env, b.owner, map[string]any{"title": "Task", "projectId": b.project.ID, "assigneeId": b.dev.ID})

	code, payload := env.do(http.MethodPut, byID("/api/tasks", id), &b.dev, map[string]any{"status": "done"})
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPut, byID("/api/tasks", id), &b.master, map[string]any{"status": "review"})
	assertStatus(t, http.StatusOK, code, payload)
	task := object(t, payload, "task")
	assert.Equal(t, "review", task["status"])
	assert.EqualValues(t, b.dev.ID, task["assigneeId"])

	code, payload = env.do(http.MethodPut, byID("/api/tasks", id), &b.master, `{"assigneeId": null}`)
	assertStatus(t, http.StatusOK, code, payload)
	assert.Nil(t, object(t, payload, "task")["assigneeId"])

	code, payload = env.do(http.MethodPut, byID("/api/tasks", id), &b.master, `{"priority": null}`)
	assertStatus(t, http.StatusBadRequest, code, payload)
	assert.Equal(t, "priority cannot be null", payload["error"])
}

func TestListTasksFilters(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	sprintID := postSprint(t, env, b.owner, b.project.ID)
	storyID := postStory(t, env, b.owner, map[string]any{"title": "Story", "projectId": b.project.ID})

	inSprint := postTask(t, env, b.owner, map[string]any{"title": "A", "projectId": b.project.ID, "sprintId": sprintID})
	inStory := postTask(t, env, b.owner, map[string]any{"title": "B", "projectId": b.project.ID, "userStoryId": storyID, "assigneeId": b.dev.ID})

	ids := func(query string) []uint {
		t.Helper()
		code, payload := env.do(http.MethodGet, "/api/tasks"+query, &b.dev, nil)
		assertStatus(t, http.StatusOK, code, payload)

		var out []uint
		for _, row := range list(t, payload, "tasks") {
			out = append(out, uint(row.(map[string]any)["id"].(float64)))
		}
		return out
	}

	assert.Equal(t, []uint{inSprint, inStory}, ids("?projectId="+utoa(b.project.ID)))
	assert.Equal(t, []uint{inSprint}, ids("?sprintId="+utoa(sprintID)))
	assert.Equal(t, []uint{inStory}, ids("?userStoryId="+utoa(storyID)))
	assert.Equal(t, []uint{inStory}, ids("?assigneeId="+utoa(b.dev.ID)))
	assert.Equal(t, []uint{inSprint, inStory}, ids(""))

	project := "?projectId=" + utoa(b.project.ID)
	assert.Equal(t, []uint{inStory}, ids(project+"&assigneeId="+utoa(b.dev.ID)))
	assert.Equal(t, []uint{inSprint}, ids(project+"&sprintId="+utoa(sprintID)))
	assert.Empty(t, ids("?sprintId="+utoa(sprintID)+"&userStoryId="+utoa(storyID)))
	assert.Empty(t, ids(project+"&assigneeId="+utoa(b.master.ID)))

	code, payload := env.do(http.MethodGet, "/api/tasks?assigneeId=999", &b.dev, nil)
	assertStatus(t, http.StatusNotFound, code, payload)
	assert.Equal(t, "User not found", payload["error"])

	code, payload = env.do(http.MethodGet, "/api/tasks?userStoryId=x", &b.dev, nil)
	assertStatus(t, http.StatusBadRequest, code, payload)
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	id := postTask(t, env, b.owner, map[string]any{"title": "Task", "projectId": b.project.ID})

	code, payload := env.do(http.MethodDelete, byID("/api/tasks", id), &b.dev, nil)
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodDelete, byID("/api/tasks", id), &b.master, nil)
	assertStatus(t, http.StatusOK, code, payload)
	require.Equal(t, "Task", object(t, payload, "task")["title"])

	code, payload = env.do(http.MethodDelete, byID("/api/tasks", id), &b.master, nil)
	assertStatus(t, http.StatusNotFound, code, payload)
}
