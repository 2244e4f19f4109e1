package handlers

import (
	"net/http"
	"strconv"

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

type CreateUserStoryRequest struct {
	Title              string `json:"title" binding:"required"`
	ProjectID          uint   `json:"projectId" binding:"required"`
	SprintID           *uint  `json:"sprintId"`
	Description        string `json:"description"`
	AcceptanceCriteria string `json:"acceptanceCriteria"`
	Status             string `json:"status"`
	Priority           string `json:"priority"`
	StoryPoints        *int   `json:"storyPoints"`
}

type UpdateUserStoryRequest struct {
	ProjectID          patch.Field[uint]   `json:"projectId"`
	SprintID           patch.Field[uint]   `json:"sprintId"`
	Title              patch.Field[string] `json:"title"`
	Description        patch.Field[string] `json:"description"`
	AcceptanceCriteria patch.Field[string] `json:"acceptanceCriteria"`
	Status             patch.Field[string] `json:"status"`
	Priority           patch.Field[string] `json:"priority"`
	StoryPoints        patch.Field[int]    `json:"storyPoints"`
}

func CreateUserStory(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req CreateUserStoryRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var story *models.UserStory
	err = transaction(ctx, func(tx *gorm.DB) error {
		story, err = createUserStory(tx, caller, req)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(story.ProjectID, "userStory")
	respond(ctx, http.StatusCreated, "userStory", story)
}

func createUserStory(tx *gorm.DB, caller types.Identity, req CreateUserStoryRequest) (*models.UserStory, error) {
	title, err := requireText("title", req.Title)
	if err != nil {
		return nil, err
	}

	status := types.StatusPending
	if req.Status != "" {
		if status, err = parseWorkStatus(req.Status); err != nil {
			return nil, err
		}
	}

	priority := types.PriorityMedium
	if req.Priority != "" {
		if priority, err = parsePriority(req.Priority); err != nil {
			return nil, err
		}
	}

	if err := checkStoryPoints(req.StoryPoints); err != nil {
		return nil, err
	}

	if _, err := mustReference[models.Project](tx, req.ProjectID, "projectId"); err != nil {
		return nil, err
	}

	if err := checkSprintInProject(tx, req.SprintID, req.ProjectID); err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionCreate, policy.ResourceUserStory); err != nil {
		return nil, err
	}

	story := models.UserStory{
		ProjectID:          req.ProjectID,
		SprintID:           req.SprintID,
		Title:              title,
		Description:        req.Description,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Status:             status,
		Priority:           priority,
		StoryPoints:        req.StoryPoints,
	}

	if err := tx.Create(&story).Error; err != nil {
		return nil, wrapInternal(err, "create user story")
	}

	return &story, nil
}

// GetUserStories serves ?id= and listings filtered by projectId and sprintId
// together or alone; backlog=true keeps stories without a sprint.
func GetUserStories(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if _, ok := ctx.GetQuery("id"); ok {
		id, err := requiredID(ctx)
		if err != nil {
			respondError(ctx, err)
			return
		}

		story, err := getUserStory(store(ctx), caller, id)
		if err != nil {
			respondError(ctx, err)
			return
		}

		respond(ctx, http.StatusOK, "userStory", story)
		return
	}

	projectID, byProject, err := utils.QueryID(ctx, "projectId")
	if err != nil {
		respondError(ctx, err)
		return
	}

	sprintID, bySprint, err := utils.QueryID(ctx, "sprintId")
	if err != nil {
		respondError(ctx, err)
		return
	}

	backlog := false
	if raw, ok := ctx.GetQuery("backlog"); ok {
		if backlog, err = strconv.ParseBool(raw); err != nil {
			respondError(ctx, errs.Validation("Invalid backlog"))
			return
		}
	}

	if backlog && bySprint {
		respondError(ctx, errs.Validation("backlog cannot be combined with sprintId"))
		return
	}

	tx := store(ctx)
	query := tx.Order("id")

	if byProject {
		if err := authorizeProjectRead(tx, caller, projectID, policy.ResourceUserStory); err != nil {
			respondError(ctx, err)
			return
		}
		query = query.Where("project_id = ?", projectID)
	}

	if bySprint {
		sprint, err := mustExist[models.Sprint](tx, sprintID, "Sprint")
		if err != nil {
			respondError(ctx, err)
			return
		}
		if err := authorizeProjectRead(tx, caller, sprint.ProjectID, policy.ResourceUserStory); err != nil {
			respondError(ctx, err)
			return
		}
		query = query.Where("sprint_id = ?", sprintID)
	}

	if !byProject && !bySprint {
		query = query.Where("project_id IN (?)", memberProjectIDs(tx, caller.ID))
	}

	if backlog {
		query = query.Where("sprint_id IS NULL")
	}

	stories := []models.UserStory{}
	if err := query.Find(&stories).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list user stories"))
		return
	}

	respond(ctx, http.StatusOK, "userStories", stories)
}

func getUserStory(tx *gorm.DB, caller types.Identity, id uint) (*models.UserStory, error) {
	story, err := mustExist[models.UserStory](tx, id, "User story")
	if err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, story.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionRead, policy.ResourceUserStory); err != nil {
		return nil, err
	}

	return story, nil
}

func UpdateUserStory(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	id, err := requiredID(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req UpdateUserStoryRequest
	bindErr := bindJSON(ctx, &req)

	var story *models.UserStory
	err = transaction(ctx, func(tx *gorm.DB) error {
		existing, err := mustExist[models.UserStory](tx, id, "User story")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		story, err = updateUserStory(tx, caller, existing, req)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(story.ProjectID, "userStory")
	respond(ctx, http.StatusOK, "userStory", story)
}

func updateUserStory(tx *gorm.DB, caller types.Identity, story *models.UserStory, req UpdateUserStoryRequest) (*models.UserStory, error) {
	updated := *story

	if req.ProjectID.Set && (req.ProjectID.Null || req.ProjectID.Value != story.ProjectID) {
		return nil, errs.Validation("projectId cannot be changed")
	}

	if req.Title.Set {
		title, err := requireText("title", req.Title.Value)
		if err != nil {
			return nil, err
		}
		updated.Title = title
	}

	if req.Description.Set {
		updated.Description = req.Description.Value
	}

	if req.AcceptanceCriteria.Set {
		updated.AcceptanceCriteria = req.AcceptanceCriteria.Value
	}

	if req.Status.Set {
		if req.Status.Null {
			return nil, errs.Validation("status cannot be null")
		}
		status, err := parseWorkStatus(req.Status.Value)
		if err != nil {
			return nil, err
		}
		updated.Status = status
	}

	if req.Priority.Set {
		if req.Priority.Null {
			return nil, errs.Validation("priority cannot be null")
		}
		priority, err := parsePriority(req.Priority.Value)
		if err != nil {
			return nil, err
		}
		updated.Priority = priority
	}

	req.StoryPoints.ApplyPtr(&updated.StoryPoints)
	if err := checkStoryPoints(updated.StoryPoints); err != nil {
		return nil, err
	}

	req.SprintID.ApplyPtr(&updated.SprintID)
	if req.SprintID.HasValue() {
		if err := checkSprintInProject(tx, updated.SprintID, updated.ProjectID); err != nil {
			return nil, err
		}
	}

	role, err := projectRole(tx, caller.ID, story.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionUpdate, policy.ResourceUserStory); err != nil {
		return nil, err
	}

	if err := tx.Save(&updated).Error; err != nil {
		return nil, wrapInternal(err, "update user story %d", story.ID)
	}

	return &updated, nil
}

func DeleteUserStory(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	id, err := requiredID(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var story *models.UserStory
	err = transaction(ctx, func(tx *gorm.DB) error {
		story, err = deleteUserStory(tx, caller, id)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(story.ProjectID, "userStory")
	respond(ctx, http.StatusOK, "userStory", story)
}

// deleteUserStory removes the story with its comments; its tasks stay in
// the project, detached from the story.
func deleteUserStory(tx *gorm.DB, caller types.Identity, id uint) (*models.UserStory, error) {
	story, err := mustExist[models.UserStory](tx, id, "User story")
	if err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, story.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionDelete, policy.ResourceUserStory); err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Task{}).Where("user_story_id = ?", id).Update("user_story_id", nil).Error; err != nil {
		return nil, wrapInternal(err, "detach tasks from story %d", id)
	}

	if err := tx.Where("user_story_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
		return nil, wrapInternal(err, "delete comments of story %d", id)
	}

	if err := tx.Delete(&models.UserStory{}, id).Error; err != nil {
		return nil, wrapInternal(err, "delete user story %d", id)
	}

	return story, nil
}
