package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChange() SprintStatusChange {
	return SprintStatusChange{
		Project: models.Project{Name: "Apollo"},
		Sprint: models.Sprint{
			Name:      "Sprint 3",
			Status:    types.SprintActive,
			StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		Previous: types.SprintPlanned,
	}
}

func TestNotifySprintStatusChangeDiscord(t *testing.T) {
	var got DiscordWebhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	change := sampleChange()
	change.Project.DiscordWebhook = srv.URL

	require.NoError(t, NotifySprintStatusChange(context.Background(), change))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "**Sprint started**", got.Embeds[0].Title)
	assert.Equal(t, ColorBlue, got.Embeds[0].Color)
	assert.Contains(t, got.Embeds[0].Description, "PLANNED to ACTIVE")
	assert.Equal(t, "2026-03-16", got.Embeds[0].Fields[3].Value)
}

func TestNotifySprintStatusChangeSlackFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload SlackWebhookRequest
		_ = json.NewDecoder(r.Body).Decode(&payload)
		assert.Contains(t, payload.Text, "Sprint 3")
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	change := sampleChange()
	change.Project.SlackWebhook = srv.URL

	err := NotifySprintStatusChange(context.Background(), change)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack")
	assert.Contains(t, err.Error(), "502")
}

func TestNotifySprintStatusChangeWithoutWebhooks(t *testing.T) {
	assert.NoError(t, NotifySprintStatusChange(context.Background(), sampleChange()))
}
