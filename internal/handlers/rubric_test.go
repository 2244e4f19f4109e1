package handlers

import (
	"net/http"
	"testing"

	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/testutil"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staff struct {
	admin, teacher, otherTeacher, student models.User
}

func seedStaff(t *testing.T) staff {
	t.Helper()

	return staff{
		admin:        testutil.CreateUser(t, "admin", types.RoleAdmin),
		teacher:      testutil.CreateUser(t, "teacher", types.RoleTeacher),
		otherTeacher: testutil.CreateUser(t, "teacher2", types.RoleTeacher),
		student:      testutil.CreateUser(t, "student", types.RoleStudent),
	}
}

func postRubric(t *testing.T, env *testEnv, user models.User, body map[string]any) uint {
	t.Helper()

	code, payload := env.do(http.MethodPost, "/api/rubrics", &user, body)
	assertStatus(t, http.StatusCreated, code, payload)
	return idOf(t, payload, "rubric")
}

func TestCreateRubric(t *testing.T) {
	env := newTestEnv(t)
	s := seedStaff(t)

	code, payload := env.do(http.MethodPost, "/api/rubrics", &s.student, map[string]any{"name": "Sprint review"})
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodPost, "/api/rubrics", &s.teacher, map[string]any{
		"name": "Sprint review",
		"criteria": []map[string]any{
			{"name": "Velocity", "weight": 2},
			{"name": "Quality", "weight": 3},
		},
	})
	assertStatus(t, http.StatusCreated, code, payload)

	rubric := object(t, payload, "rubric")
	assert.EqualValues(t, models.DefaultRubricMaxScore, rubric["maxScore"])
	assert.EqualValues(t, s.teacher.ID, rubric["creatorId"])
	require.Len(t, rubric["criteria"], 2)

	code, fetched := env.do(http.MethodGet, byID("/api/rubrics", idOf(t, payload, "rubric")), &s.student, nil)
	assertStatus(t, http.StatusOK, code, fetched)
	assert.Equal(t, withoutTimestamps(rubric), withoutTimestamps(object(t, fetched, "rubric")))

	for name, body := range map[string]map[string]any{
		"zero max":      {"name": "R", "maxScore": 0},
		"unnamed line":  {"name": "R", "criteria": []map[string]any{{"weight": 1}}},
		"missing name":  {"maxScore": 10},
		"negative line": {"name": "R", "criteria": []map[string]any{{"name": "x", "weight": -1}}},
	} {
		code, payload := env.do(http.MethodPost, "/api/rubrics", &s.teacher, body)
		assertStatus(t, http.StatusBadRequest, code, payload)
		assert.NotEmpty(t, payload["error"], name)
	}
}

func TestRubricModificationRequiresCreatorOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	s := seedStaff(t)
	id := postRubric(t, env, s.teacher, map[string]any{"name": "Demo", "maxScore": 10})

	for _, user := range []models.User{s.otherTeacher, s.student} {
		code, payload := env.do(http.MethodPut, byID("/api/rubrics", id), &user, map[string]any{"name": "Taken"})
		assertStatus(t, http.StatusForbidden, code, payload)

		code, payload = env.do(http.MethodDelete, byID("/api/rubrics", id), &user, nil)
		assertStatus(t, http.StatusForbidden, code, payload)
	}

	code, payload := env.do(http.MethodPut, byID("/api/rubrics", id), &s.teacher, map[string]any{"description": "graded live"})
	assertStatus(t, http.StatusOK, code, payload)
	rubric := object(t, payload, "rubric")
	assert.Equal(t, "Demo", rubric["name"])
	assert.Equal(t, "graded live", rubric["description"])

	code, payload = env.do(http.MethodPut, byID("/api/rubrics", id), &s.admin, `{"maxScore": null}`)
	assertStatus(t, http.StatusOK, code, payload)
	assert.EqualValues(t, models.DefaultRubricMaxScore, object(t, payload, "rubric")["maxScore"])

	code, payload = env.do(http.MethodDelete, byID("/api/rubrics", id), &s.admin, nil)
	assertStatus(t, http.StatusOK, code, payload)

	code, payload = env.do(http.MethodDelete, byID("/api/rubrics", id), &s.admin, nil)
	assertStatus(t, http.StatusNotFound, code, payload)
}

func TestListRubrics(t *testing.T) {
	env := newTestEnv(t)
	s := seedStaff(t)
	mine := postRubric(t, env, s.teacher, map[string]any{"name": "Mine"})
	theirs := postRubric(t, env, s.otherTeacher, map[string]any{"name": "Theirs"})

	code, payload := env.do(http.MethodGet, "/api/rubrics", &s.student, nil)
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodGet, "/api/rubrics", &s.teacher, nil)
	assertStatus(t, http.StatusOK, code, payload)
	assert.Len(t, list(t, payload, "rubrics"), 2)

	code, payload = env.do(http.MethodGet, "/api/rubrics?creatorId="+utoa(s.teacher.ID), &s.otherTeacher, nil)
	assertStatus(t, http.StatusOK, code, payload)
	rubrics := list(t, payload, "rubrics")
	require.Len(t, rubrics, 1)
	assert.EqualValues(t, mine, rubrics[0].(map[string]any)["id"])

	code, payload = env.do(http.MethodGet, "/api/rubrics?creatorId="+utoa(s.student.ID), &s.student, nil)
	assertStatus(t, http.StatusOK, code, payload)
	assert.Empty(t, list(t, payload, "rubrics"))

	code, payload = env.do(http.MethodGet, "/api/rubrics?creatorId="+utoa(s.teacher.ID), &s.student, nil)
	assertStatus(t, http.StatusForbidden, code, payload)

	code, payload = env.do(http.MethodGet, "/api/rubrics?creatorId=999", &s.admin, nil)
	assertStatus(t, http.StatusNotFound, code, payload)

	code, payload = env.do(http.MethodGet, byID("/api/rubrics", theirs), &s.student, nil)
	assertStatus(t, http.StatusOK, code, payload)
}

func TestRubricMaxScoreBoundByEvaluations(t *testing.T) {
	env := newTestEnv(t)
	s := seedStaff(t)
	b := seedBoard(t)
	id := postRubric(t, env, s.teacher, map[string]any{"name": "Demo", "maxScore": 50})

	code, payload := env.do(http.MethodPost, "/api/evaluations", &s.teacher, map[string]any{
		"rubricId": id, "projectId": b.project.ID, "score": 40,
	})
	assertStatus(t, http.StatusCreated, code, payload)

	code, payload = env.do(http.MethodPut, byID("/api/rubrics", id), &s.teacher, map[string]any{"maxScore": 30})
	assertStatus(t, http.StatusBadRequest, code, payload)
	assert.Equal(t, "maxScore cannot be lower than an existing evaluation score (40)", payload["error"])

	code, payload = env.do(http.MethodPut, byID("/api/rubrics", id), &s.teacher, map[string]any{"maxScore": 40})
	assertStatus(t, http.StatusOK, code, payload)
}
