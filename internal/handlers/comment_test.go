package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentPermissions(t *testing.T) {
	env := newTestEnv(t)
	b := seedBoard(t)
	storyID := postStory(t, env, b.owner, map[string]any{"title": "Story", "projectId": b.project.ID})

	code, payload := env.do(http.MethodPost, "/api/comments", &b.outsider, map[string]any{"body": "hi", "userStoryId": storyID})
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPost, "/api/comments", &b.dev, map[string]any{"body": "  ", "userStoryId": storyID})
	assertStatus(t, http.StatusBadRequest, code, payload)

	code, payload = env.do(http.MethodPost, "/api/comments", &b.dev, map[string]any{"body": "first", "userStoryId": storyID})
	assertStatus(t, http.StatusCreated, code, payload)
	id := idOf(t, payload, "comment")

	code, payload = env.do(http.MethodGet, "/api/comments?userStoryId="+utoa(storyID), &b.owner, nil)
	assertStatus(t, http.StatusOK, code, payload)
	require.Len(t, list(t, payload, "comments"), 1)

	code, payload = env.do(http.MethodGet, "/api/comments", &b.dev, nil)
	assertStatus(t, http.StatusOK, code, payload)
	require.Len(t, list(t, payload, "comments"), 1)

	code, payload = env.do(http.MethodPut, byID("/api/comments", id), &b.owner, map[string]any{"body": "edited"})
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPut, byID("/api/comments", id), &b.dev, map[string]any{"body": "edited"})
	assertStatus(t, http.StatusOK, code, payload)
	assert.Equal(t, "edited", object(t, payload, "comment")["body"])

	code, payload = env.do(http.MethodDelete, byID("/api/comments", id), &b.master, nil)
	assertStatus(t, http.StatusOK, code, payload)

	code, payload = env.do(http.MethodPost, "/api/comments", &b.master, map[string]any{"body": "mine", "userStoryId": storyID})
	assertStatus(t, http.StatusCreated, code, payload)

	code, payload = env.do(http.MethodDelete, byID("/api/comments", idOf(t, payload, "comment")), &b.dev, nil)
	assertStatus(t, http.StatusForbidden, code, payload)
}
