package handlers

import (
	"net/http"

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

type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	ProjectID   uint   `json:"projectId" binding:"required"`
	SprintID    *uint  `json:"sprintId"`
	UserStoryID *uint  `json:"userStoryId"`
	AssigneeID  *uint  `json:"assigneeId"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	StoryPoints *int   `json:"storyPoints"`
}

type UpdateTaskRequest struct {
	ProjectID   patch.Field[uint]   `json:"projectId"`
	SprintID    patch.Field[uint]   `json:"sprintId"`
	UserStoryID patch.Field[uint]   `json:"userStoryId"`
	AssigneeID  patch.Field[uint]   `json:"assigneeId"`
	Title       patch.Field[string] `json:"title"`
	Description patch.Field[string] `json:"description"`
	Status      patch.Field[string] `json:"status"`
	Priority    patch.Field[string] `json:"priority"`
	StoryPoints patch.Field[int]    `json:"storyPoints"`
}

func CreateTask(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req CreateTaskRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var task *models.Task
	err = transaction(ctx, func(tx *gorm.DB) error {
		task, err = createTask(tx, caller, req)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(task.ProjectID, "task")
	respond(ctx, http.StatusCreated, "task", task)
}

func createTask(tx *gorm.DB, caller types.Identity, req CreateTaskRequest) (*models.Task, error) {
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

	if err := checkTaskReferences(tx, req.ProjectID, req.SprintID, req.UserStoryID, req.AssigneeID); err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionCreate, policy.ResourceTask); err != nil {
		return nil, err
	}

	task := models.Task{
		ProjectID:   req.ProjectID,
		SprintID:    req.SprintID,
		UserStoryID: req.UserStoryID,
		AssigneeID:  req.AssigneeID,
		Title:       title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		StoryPoints: req.StoryPoints,
	}

	if err := tx.Create(&task).Error; err != nil {
		return nil, wrapInternal(err, "create task")
	}

	return &task, nil
}

// checkTaskReferences validates the optional foreign keys of a task against
// its project. nil ids are skipped.
func checkTaskReferences(tx *gorm.DB, projectID uint, sprintID, storyID, assigneeID *uint) error {
	if err := checkSprintInProject(tx, sprintID, projectID); err != nil {
		return err
	}

	if storyID != nil {
		story, err := mustReference[models.UserStory](tx, *storyID, "userStoryId")
		if err != nil {
			return err
		}

		if story.ProjectID != projectID {
			return errs.Validation("User story %d does not belong to project %d", story.ID, projectID)
		}
	}

	if assigneeID != nil {
		if _, err := mustReference[models.User](tx, *assigneeID, "assigneeId"); err != nil {
			return err
		}
	}

	return nil
}

// GetTasks serves ?id= and listings filtered by any combination of
// projectId, sprintId, userStoryId and assigneeId.
func GetTasks(ctx *gin.Context) {
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

		task, err := getTask(store(ctx), caller, id)
		if err != nil {
			respondError(ctx, err)
			return
		}

		respond(ctx, http.StatusOK, "task", task)
		return
	}

	filters := make(map[string]uint)
	for _, name := range []string{"projectId", "sprintId", "userStoryId", "assigneeId"} {
		id, ok, err := utils.QueryID(ctx, name)
		if err != nil {
			respondError(ctx, err)
			return
		}
		if ok {
			filters[name] = id
		}
	}

	tx := store(ctx)
	query, err := taskListQuery(tx, caller, filters)
	if err != nil {
		respondError(ctx, err)
		return
	}

	tasks := []models.Task{}
	if err := query.Order("id").Find(&tasks).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list tasks"))
		return
	}

	respond(ctx, http.StatusOK, "tasks", tasks)
}

// taskListQuery combines every given filter. Each parent must exist and be
// readable by the caller; without one the listing covers the caller's projects.
func taskListQuery(tx *gorm.DB, caller types.Identity, filters map[string]uint) (*gorm.DB, error) {
	query := tx.Model(&models.Task{})
	scoped := false

	if projectID, ok := filters["projectId"]; ok {
		if err := authorizeProjectRead(tx, caller, projectID, policy.ResourceTask); err != nil {
			return nil, err
		}
		query = query.Where("project_id = ?", projectID)
		scoped = true
	}

	if sprintID, ok := filters["sprintId"]; ok {
		sprint, err := mustExist[models.Sprint](tx, sprintID, "Sprint")
		if err != nil {
			return nil, err
		}
		if err := authorizeProjectRead(tx, caller, sprint.ProjectID, policy.ResourceTask); err != nil {
			return nil, err
		}
		query = query.Where("sprint_id = ?", sprintID)
		scoped = true
	}

	if storyID, ok := filters["userStoryId"]; ok {
		story, err := mustExist[models.UserStory](tx, storyID, "User story")
		if err != nil {
			return nil, err
		}
		if err := authorizeProjectRead(tx, caller, story.ProjectID, policy.ResourceTask); err != nil {
			return nil, err
		}
		query = query.Where("user_story_id = ?", storyID)
		scoped = true
	}

	if !scoped {
		query = query.Where("project_id IN (?)", memberProjectIDs(tx, caller.ID))
	}

	if assigneeID, ok := filters["assigneeId"]; ok {
		if _, err := mustExist[models.User](tx, assigneeID, "User"); err != nil {
			return nil, err
		}
		query = query.Where("assignee_id = ?", assigneeID)
	}

	return query, nil
}

func getTask(tx *gorm.DB, caller types.Identity, id uint) (*models.Task, error) {
	task, err := mustExist[models.Task](tx, id, "Task")
	if err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, task.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionRead, policy.ResourceTask); err != nil {
		return nil, err
	}

	return task, nil
}

func UpdateTask(ctx *gin.Context) {
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

	var req UpdateTaskRequest
	bindErr := bindJSON(ctx, &req)

	var task *models.Task
	err = transaction(ctx, func(tx *gorm.DB) error {
		existing, err := mustExist[models.Task](tx, id, "Task")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		task, err = updateTask(tx, caller, existing, req)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(task.ProjectID, "task")
	respond(ctx, http.StatusOK, "task", task)
}

func updateTask(tx *gorm.DB, caller types.Identity, task *models.Task, req UpdateTaskRequest) (*models.Task, error) {
	updated := *task

	if req.ProjectID.Set && (req.ProjectID.Null || req.ProjectID.Value != task.ProjectID) {
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
	req.UserStoryID.ApplyPtr(&updated.UserStoryID)
	req.AssigneeID.ApplyPtr(&updated.AssigneeID)

	// Only references carried by this request need re-checking.
	var sprintID, storyID, assigneeID *uint
	if req.SprintID.HasValue() {
		sprintID = updated.SprintID
	}
	if req.UserStoryID.HasValue() {
		storyID = updated.UserStoryID
	}
	if req.AssigneeID.HasValue() {
		assigneeID = updated.AssigneeID
	}

	if err := checkTaskReferences(tx, updated.ProjectID, sprintID, storyID, assigneeID); err != nil {
		return nil, err
	}

	role, err := projectRole(tx, caller.ID, task.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(role, policy.ActionUpdate, policy.ResourceTask); err != nil {
		return nil, err
	}

	if err := tx.Save(&updated).Error; err != nil {
		return nil, wrapInternal(err, "update task %d", task.ID)
	}

	return &updated, nil
}

func DeleteTask(ctx *gin.Context) {
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

	var task *models.Task
	err = transaction(ctx, func(tx *gorm.DB) error {
		task, err = mustExist[models.Task](tx, id, "Task")
		if err != nil {
			return err
		}

		role, err := projectRole(tx, caller.ID, task.ProjectID)
		if err != nil {
			return err
		}

		if err := policy.Authorize(role, policy.ActionDelete, policy.ResourceTask); err != nil {
			return err
		}

		if err := tx.Delete(&models.Task{}, id).Error; err != nil {
			return wrapInternal(err, "delete task %d", id)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(task.ProjectID, "task")
	respond(ctx, http.StatusOK, "task", task)
}
