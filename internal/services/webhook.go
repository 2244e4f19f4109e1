package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/types"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorBlue   = 3447003  // #3498DB - Sprint started
	ColorGreen  = 65280    // #00FF00 - Sprint completed
	ColorOrange = 16753920 // #FFA500 - Sprint cancelled
	ColorGrey   = 9807270  // #95A5A6 - Back to planning

	Username = "Scrumboard"

	dateLayout = "2006-01-02"
)

var client = &http.Client{Timeout: 10 * time.Second}

// SprintStatusChange describes a sprint moving from one status to another.
type SprintStatusChange struct {
	Project  models.Project
	Sprint   models.Sprint
	Previous types.SprintStatus
}

// NotifySprintStatusChange posts the change to every webhook configured on
// the project. Projects without webhooks are a no-op.
func NotifySprintStatusChange(ctx context.Context, change SprintStatusChange) error {
	if change.Project.DiscordWebhook != "" {
		if err := sendDiscordWebhook(ctx, change.Project.DiscordWebhook, discordPayload(change)); err != nil {
			return fmt.Errorf("discord: %w", err)
		}
	}

	if change.Project.SlackWebhook != "" {
		if err := sendSlackWebhook(ctx, change.Project.SlackWebhook, slackPayload(change)); err != nil {
			return fmt.Errorf("slack: %w", err)
		}
	}

	return nil
}

func headline(status types.SprintStatus) (string, int) {
	switch status {
	case types.SprintActive:
		return "Sprint started", ColorBlue
	case types.SprintCompleted:
		return "Sprint completed", ColorGreen
	case types.SprintCancelled:
		return "Sprint cancelled", ColorOrange
	default:
		return "Sprint back in planning", ColorGrey
	}
}

func discordPayload(change SprintStatusChange) DiscordWebhookRequest {
	title, color := headline(change.Sprint.Status)

	return DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       "**" + title + "**",
				Description: fmt.Sprintf("**%s** moved from %s to %s.", change.Sprint.Name, change.Previous, change.Sprint.Status),
				Color:       color,
				Fields: []DiscordWebhookField{
					{Name: "Sprint", Value: change.Sprint.Name, Inline: true},
					{Name: "Status", Value: "**" + string(change.Sprint.Status) + "**", Inline: true},
					{Name: "Start", Value: change.Sprint.StartDate.Format(dateLayout), Inline: true},
					{Name: "End", Value: change.Sprint.EndDate.Format(dateLayout), Inline: true},
				},
				Footer: &DiscordFooter{
					Text: fmt.Sprintf("Project: %s | Scrumboard", change.Project.Name),
				},
				Timestamp: time.Now().Format(time.RFC3339),
			},
		},
	}
}

func slackPayload(change SprintStatusChange) SlackWebhookRequest {
	title, color := headline(change.Sprint.Status)

	return SlackWebhookRequest{
		Username: Username,
		Text:     fmt.Sprintf("%s: *%s*", title, change.Sprint.Name),
		Attachments: []SlackAttachment{
			{
				Color: fmt.Sprintf("#%06X", color),
				Title: change.Sprint.Name,
				Text:  fmt.Sprintf("Status changed from %s to %s", change.Previous, change.Sprint.Status),
				Fields: []SlackField{
					{Title: "Start", Value: change.Sprint.StartDate.Format(dateLayout), Short: true},
					{Title: "End", Value: change.Sprint.EndDate.Format(dateLayout), Short: true},
				},
				Footer:    "Project: " + change.Project.Name,
				Timestamp: time.Now().Unix(),
			},
		},
	}
}

func sendDiscordWebhook(ctx context.Context, webhookURL string, payload DiscordWebhookRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Discord payload: %w", err)
	}

	return post(ctx, webhookURL, body)
}

func sendSlackWebhook(ctx context.Context, webhookURL string, payload SlackWebhookRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	return post(ctx, webhookURL, body)
}

func post(ctx context.Context, webhookURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
