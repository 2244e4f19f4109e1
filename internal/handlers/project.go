package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/patch"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/realtime"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/gorm"
)

type CreateProjectRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	DiscordWebhook string `json:"discordWebhook"`
	SlackWebhook   string `json:"slackWebhook"`
}

type UpdateProjectRequest struct {
	Name           patch.Field[string] `json:"name"`
	Description    patch.Field[string] `json:"description"`
	DiscordWebhook patch.Field[string] `json:"discordWebhook"`
	SlackWebhook   patch.Field[string] `json:"slackWebhook"`
}

type ProjectResponse struct {
	ID             uint              `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	OwnerID        uint              `json:"ownerId"`
	Role           types.ProjectRole `json:"role,omitempty"`
	DiscordWebhook string            `json:"discordWebhook,omitempty"`
	SlackWebhook   string            `json:"slackWebhook,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func projectResponse(project models.Project, role types.ProjectRole) ProjectResponse {
	response := ProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		OwnerID:     project.OwnerID,
		Role:        role,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}

	// Webhook URLs carry credentials.
	if role == types.ProjectOwner {
		response.DiscordWebhook = project.DiscordWebhook
		response.SlackWebhook = project.SlackWebhook
	}

	return response
}

func CreateProject(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req CreateProjectRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var project models.Project
	err = transaction(ctx, func(tx *gorm.DB) error {
		name, err := requireText("name", req.Name)
		if err != nil {
			return err
		}

		if err := checkWebhookURL("discordWebhook", req.DiscordWebhook); err != nil {
			return err
		}

		if err := checkWebhookURL("slackWebhook", req.SlackWebhook); err != nil {
			return err
		}

		project = models.Project{
			Name:           name,
			Description:    req.Description,
			OwnerID:        caller.ID,
			DiscordWebhook: strings.TrimSpace(req.DiscordWebhook),
			SlackWebhook:   strings.TrimSpace(req.SlackWebhook),
		}

		if err := tx.Create(&project).Error; err != nil {
			return wrapInternal(err, "create project")
		}

		owner := models.TeamMember{UserID: caller.ID, ProjectID: project.ID, Role: types.ProjectOwner}

		if err := tx.Create(&owner).Error; err != nil {
			return wrapInternal(err, "add project owner")
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, "project", projectResponse(project, types.ProjectOwner))
}

// checkWebhookURL accepts an empty value or an absolute http(s) URL.
func checkWebhookURL(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return errs.Validation("%s must be an http(s) URL", field)
	}

	return nil
}

func ListProjects(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	tx := store(ctx)

	var memberships []models.TeamMember
	if err := tx.Where("user_id = ?", caller.ID).Find(&memberships).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list memberships"))
		return
	}

	roles := make(map[uint]types.ProjectRole, len(memberships))
	for _, member := range memberships {
		roles[member.ProjectID] = member.Role
	}

	var rows []models.Project
	if err := tx.Where("id IN (?)", memberProjectIDs(tx, caller.ID)).Order("id").Find(&rows).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list projects"))
		return
	}

	projects := make([]ProjectResponse, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, projectResponse(row, roles[row.ID]))
	}

	respond(ctx, http.StatusOK, "projects", projects)
}

func GetProject(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	projectID, err := utils.ParamID(ctx, "project_id", "project id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	tx := store(ctx)

	project, err := mustExist[models.Project](tx, projectID, "Project")
	if err != nil {
		respondError(ctx, err)
		return
	}

	role, err := projectRole(tx, caller.ID, projectID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if err := policy.Authorize(role, policy.ActionRead, policy.ResourceProject); err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "project", projectResponse(*project, role))
}

func UpdateProject(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	projectID, err := utils.ParamID(ctx, "project_id", "project id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req UpdateProjectRequest
	bindErr := bindJSON(ctx, &req)

	var project *models.Project
	err = transaction(ctx, func(tx *gorm.DB) error {
		project, err = mustExist[models.Project](tx, projectID, "Project")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		if req.Name.Set {
			if req.Name.Null {
				return errs.Validation("name cannot be null")
			}
			if project.Name, err = requireText("name", req.Name.Value); err != nil {
				return err
			}
		}

		req.Description.Apply(&project.Description)
		if req.Description.Null {
			project.Description = ""
		}

		for _, hook := range []struct {
			field string
			value patch.Field[string]
			dst   *string
		}{
			{"discordWebhook", req.DiscordWebhook, &project.DiscordWebhook},
			{"slackWebhook", req.SlackWebhook, &project.SlackWebhook},
		} {
			if !hook.value.Set {
				continue
			}
			if err := checkWebhookURL(hook.field, hook.value.Value); err != nil {
				return err
			}
			*hook.dst = strings.TrimSpace(hook.value.Value)
		}

		role, err := projectRole(tx, caller.ID, projectID)
		if err != nil {
			return err
		}

		if err := policy.Authorize(role, policy.ActionUpdate, policy.ResourceProject); err != nil {
			return err
		}

		if err := tx.Save(project).Error; err != nil {
			return wrapInternal(err, "update project %d", projectID)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "project")
	respond(ctx, http.StatusOK, "project", projectResponse(*project, types.ProjectOwner))
}

// DeleteProject removes the project together with its board and memberships.
func DeleteProject(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	projectID, err := utils.ParamID(ctx, "project_id", "project id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	var project *models.Project
	err = transaction(ctx, func(tx *gorm.DB) error {
		project, err = mustExist[models.Project](tx, projectID, "Project")
		if err != nil {
			return err
		}

		role, err := projectRole(tx, caller.ID, projectID)
		if err != nil {
			return err
		}

		if err := policy.Authorize(role, policy.ActionDelete, policy.ResourceProject); err != nil {
			return err
		}

		return deleteProjectRows(tx, projectID)
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "project")
	respond(ctx, http.StatusOK, "project", projectResponse(*project, types.ProjectOwner))
}

func deleteProjectRows(tx *gorm.DB, projectID uint) error {
	stories := tx.Model(&models.UserStory{}).Select("id").Where("project_id = ?", projectID)

	steps := []struct {
		what  string
		query *gorm.DB
		model any
	}{
		{"comments", tx.Where("user_story_id IN (?)", stories), &models.Comment{}},
		{"tasks", tx.Where("project_id = ?", projectID), &models.Task{}},
		{"user stories", tx.Where("project_id = ?", projectID), &models.UserStory{}},
		{"sprints", tx.Where("project_id = ?", projectID), &models.Sprint{}},
		{"evaluations", tx.Where("project_id = ?", projectID), &models.Evaluation{}},
		{"team members", tx.Where("project_id = ?", projectID), &models.TeamMember{}},
	}

	for _, step := range steps {
		if err := step.query.Delete(step.model).Error; err != nil {
			return wrapInternal(err, "delete %s of project %d", step.what, projectID)
		}
	}

	if err := tx.Delete(&models.Project{}, projectID).Error; err != nil {
		return wrapInternal(err, "delete project %d", projectID)
	}

	return nil
}
