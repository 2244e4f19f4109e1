package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/patch"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/realtime"
	"github.com/monocle-dev/scrumboard/internal/services"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/gorm"
)

type CreateSprintRequest struct {
	Name        string `json:"name" binding:"required"`
	ProjectID   uint   `json:"projectId" binding:"required"`
	Description string `json:"description"`
	StartDate   string `json:"startDate" binding:"required"`
	EndDate     string `json:"endDate" binding:"required"`
	Status      string `json:"status"`
}

type UpdateSprintRequest struct {
	ProjectID   patch.Field[uint]   `json:"projectId"`
	Name        patch.Field[string] `json:"name"`
	Description patch.Field[string] `json:"description"`
	StartDate   patch.Field[string] `json:"startDate"`
	EndDate     patch.Field[string] `json:"endDate"`
	Status      patch.Field[string] `json:"status"`
}

const webhookTimeout = 15 * time.Second

func CreateSprint(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req CreateSprintRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var sprint *models.Sprint
	err = transaction(ctx, func(tx *gorm.DB) error {
		sprint, err = createSprint(tx, caller, req)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(sprint.ProjectID, "sprint")
	respond(ctx, http.StatusCreated, "sprint", sprint)
}

func createSprint(tx *gorm.DB, caller types.Identity, req CreateSprintRequest) (*models.Sprint, error) {
	name, err := requireText("name", req.Name)
	if err != nil {
		return nil, err
	}

	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}

	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		return nil, err
	}

	if end.Before(start) {
		return nil, errs.Validation("endDate must not be before startDate")
	}

	status := types.SprintPlanned
	if req.Status != "" {
		if status, err = parseSprintStatus(req.Status); err != nil {
			return nil, err
		}
	}

	if _, err := mustReference[models.Project](tx, req.ProjectID, "projectId"); err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionCreate, policy.ResourceSprint); err != nil {
		return nil, err
	}

	sprint := models.Sprint{
		ProjectID:   req.ProjectID,
		Name:        name,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
	}

	if err := tx.Create(&sprint).Error; err != nil {
		return nil, wrapInternal(err, "create sprint")
	}

	return &sprint, nil
}

// GetSprints serves ?id=, ?projectId= and the unfiltered listing of every
// sprint in the caller's projects.
func GetSprints(ctx *gin.Context) {
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

		sprint, err := getSprint(store(ctx), caller, id)
		if err != nil {
			respondError(ctx, err)
			return
		}

		respond(ctx, http.StatusOK, "sprint", sprint)
		return
	}

	projectID, byProject, err := utils.QueryID(ctx, "projectId")
	if err != nil {
		respondError(ctx, err)
		return
	}

	tx := store(ctx)
	query := tx.Order("id")

	if byProject {
		if err := authorizeProjectRead(tx, caller, projectID, policy.ResourceSprint); err != nil {
			respondError(ctx, err)
			return
		}
		query = query.Where("project_id = ?", projectID)
	} else {
		query = query.Where("project_id IN (?)", memberProjectIDs(tx, caller.ID))
	}

	sprints := []models.Sprint{}
	if err := query.Find(&sprints).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list sprints"))
		return
	}

	respond(ctx, http.StatusOK, "sprints", sprints)
}

func getSprint(tx *gorm.DB, caller types.Identity, id uint) (*models.Sprint, error) {
	sprint, err := mustExist[models.Sprint](tx, id, "Sprint")
	if err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, sprint.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionRead, policy.ResourceSprint); err != nil {
		return nil, err
	}

	return sprint, nil
}

// authorizeProjectRead checks a parent project exists and the caller may
// read resource in it.
func authorizeProjectRead(tx *gorm.DB, caller types.Identity, projectID uint, resource policy.Resource) error {
	if _, err := mustExist[models.Project](tx, projectID, "Project"); err != nil {
		return err
	}

	role, err := projectRole(tx, caller.ID, projectID)
	if err != nil {
		return err
	}

	return policy.Authorize(role, policy.ActionRead, resource)
}

func UpdateSprint(ctx *gin.Context) {
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

	// A missing sprint is reported before a malformed body.
	var req UpdateSprintRequest
	bindErr := bindJSON(ctx, &req)

	var (
		sprint   *models.Sprint
		previous types.SprintStatus
		project  *models.Project
	)

	err = transaction(ctx, func(tx *gorm.DB) error {
		existing, err := mustExist[models.Sprint](tx, id, "Sprint")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		previous = existing.Status

		sprint, err = updateSprint(tx, caller, existing, req)
		if err != nil {
			return err
		}

		if sprint.Status != previous {
			project, err = mustExist[models.Project](tx, sprint.ProjectID, "Project")
		}

		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(sprint.ProjectID, "sprint")

	if project != nil {
		notifySprintStatus(*project, *sprint, previous)
	}

	respond(ctx, http.StatusOK, "sprint", sprint)
}

func updateSprint(tx *gorm.DB, caller types.Identity, sprint *models.Sprint, req UpdateSprintRequest) (*models.Sprint, error) {
	updated := *sprint

	if req.Name.Set {
		name, err := requireText("name", req.Name.Value)
		if err != nil {
			return nil, err
		}
		updated.Name = name
	}

	if req.Description.Set {
		updated.Description = req.Description.Value
	}

	if req.StartDate.Set {
		start, err := parseDate("startDate", req.StartDate.Value)
		if err != nil {
			return nil, err
		}
		updated.StartDate = start
	}

	if req.EndDate.Set {
		end, err := parseDate("endDate", req.EndDate.Value)
		if err != nil {
			return nil, err
		}
		updated.EndDate = end
	}

	if updated.EndDate.Before(updated.StartDate) {
		return nil, errs.Validation("endDate must not be before startDate")
	}

	if req.Status.Set {
		status, err := parseSprintStatus(req.Status.Value)
		if err != nil {
			return nil, err
		}
		updated.Status = status
	}

	if req.ProjectID.Set {
		if req.ProjectID.Null {
			return nil, errs.Validation("projectId cannot be null")
		}
		updated.ProjectID = req.ProjectID.Value
	}

	moving := updated.ProjectID != sprint.ProjectID

	if moving {
		if _, err := mustReference[models.Project](tx, updated.ProjectID, "projectId"); err != nil {
			return nil, err
		}

		if err := checkSprintUnreferenced(tx, sprint.ID); err != nil {
			return nil, err
		}
	}

	role, err := projectRole(tx, caller.ID, sprint.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionUpdate, policy.ResourceSprint); err != nil {
		return nil, err
	}

	if moving {
		target, err := projectRole(tx, caller.ID, updated.ProjectID)
		if err != nil {
			return nil, err
		}

		if err := policy.Authorize(target, policy.ActionUpdate, policy.ResourceSprint); err != nil {
			return nil, err
		}
	}

	if err := tx.Save(&updated).Error; err != nil {
		return nil, wrapInternal(err, "update sprint %d", sprint.ID)
	}

	return &updated, nil
}

// checkSprintUnreferenced rejects moving a sprint that stories or tasks
// already point at.
func checkSprintUnreferenced(tx *gorm.DB, sprintID uint) error {
	var stories, tasks int64

	if err := tx.Model(&models.UserStory{}).Where("sprint_id = ?", sprintID).Count(&stories).Error; err != nil {
		return wrapInternal(err, "count sprint stories")
	}

	if err := tx.Model(&models.Task{}).Where("sprint_id = ?", sprintID).Count(&tasks).Error; err != nil {
		return wrapInternal(err, "count sprint tasks")
	}

	if stories+tasks > 0 {
		return errs.Validation("projectId cannot change while user stories or tasks reference the sprint")
	}

	return nil
}

func DeleteSprint(ctx *gin.Context) {
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

	var sprint *models.Sprint
	err = transaction(ctx, func(tx *gorm.DB) error {
		sprint, err = deleteSprint(tx, caller, id)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(sprint.ProjectID, "sprint")
	respond(ctx, http.StatusOK, "sprint", sprint)
}

// deleteSprint removes the sprint and sends its stories and tasks back to
// the backlog.
func deleteSprint(tx *gorm.DB, caller types.Identity, id uint) (*models.Sprint, error) {
	sprint, err := mustExist[models.Sprint](tx, id, "Sprint")
	if err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, sprint.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionDelete, policy.ResourceSprint); err != nil {
		return nil, err
	}

	if err := tx.Model(&models.UserStory{}).Where("sprint_id = ?", id).Update("sprint_id", nil).Error; err != nil {
		return nil, wrapInternal(err, "detach stories from sprint %d", id)
	}

	if err := tx.Model(&models.Task{}).Where("sprint_id = ?", id).Update("sprint_id", nil).Error; err != nil {
		return nil, wrapInternal(err, "detach tasks from sprint %d", id)
	}

	if err := tx.Delete(&models.Sprint{}, id).Error; err != nil {
		return nil, wrapInternal(err, "delete sprint %d", id)
	}

	return sprint, nil
}

func parseSprintStatus(value string) (types.SprintStatus, error) {
	status, ok := types.ParseSprintStatus(value)
	if !ok {
		return "", errs.Validation("Invalid status %q", value)
	}
	return status, nil
}

// notifySprintStatus posts webhooks in the background; failures are only logged.
func notifySprintStatus(project models.Project, sprint models.Sprint, previous types.SprintStatus) {
	if project.DiscordWebhook == "" && project.SlackWebhook == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()

		change := services.SprintStatusChange{Project: project, Sprint: sprint, Previous: previous}
		if err := services.NotifySprintStatusChange(ctx, change); err != nil {
			logging.Logger.Warn("sprint webhook failed", "sprint_id", sprint.ID, "err", err)
		}
	}()
}
