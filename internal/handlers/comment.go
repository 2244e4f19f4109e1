package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/realtime"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/gorm"
)

type CreateCommentRequest struct {
	Body        string `json:"body" binding:"required"`
	UserStoryID uint   `json:"userStoryId" binding:"required"`
}

type UpdateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

func CreateComment(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req CreateCommentRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var (
		comment   *models.Comment
		projectID uint
	)

	err = transaction(ctx, func(tx *gorm.DB) error {
		body, err := requireText("body", req.Body)
		if err != nil {
			return err
		}

		story, err := mustReference[models.UserStory](tx, req.UserStoryID, "userStoryId")
		if err != nil {
			return err
		}
		projectID = story.ProjectID

		role, err := projectRole(tx, caller.ID, story.ProjectID)
		if err != nil {
			return err
		}

		if err := policy.Authorize(role, policy.ActionCreate, policy.ResourceComment); err != nil {
			return err
		}

		comment = &models.Comment{UserStoryID: story.ID, AuthorID: caller.ID, Body: body}

		if err := tx.Create(comment).Error; err != nil {
			return wrapInternal(err, "create comment")
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "comment")
	respond(ctx, http.StatusCreated, "comment", comment)
}

// GetComments serves ?id= and ?userStoryId=; without a filter it lists the
// caller's own comments.
func GetComments(ctx *gin.Context) {
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

		tx := store(ctx)

		comment, err := mustExist[models.Comment](tx, id, "Comment")
		if err != nil {
			respondError(ctx, err)
			return
		}

		story, err := mustExist[models.UserStory](tx, comment.UserStoryID, "User story")
		if err != nil {
			respondError(ctx, err)
			return
		}

		if err := authorizeProjectRead(tx, caller, story.ProjectID, policy.ResourceComment); err != nil {
			respondError(ctx, err)
			return
		}

		respond(ctx, http.StatusOK, "comment", comment)
		return
	}

	storyID, byStory, err := utils.QueryID(ctx, "userStoryId")
	if err != nil {
		respondError(ctx, err)
		return
	}

	tx := store(ctx)

	query := tx.Order("id")

	if byStory {
		story, err := mustExist[models.UserStory](tx, storyID, "User story")
		if err != nil {
			respondError(ctx, err)
			return
		}

		if err := authorizeProjectRead(tx, caller, story.ProjectID, policy.ResourceComment); err != nil {
			respondError(ctx, err)
			return
		}

		query = query.Where("user_story_id = ?", storyID)
	} else {
		query = query.Where("author_id = ?", caller.ID)
	}

	comments := []models.Comment{}
	if err := query.Find(&comments).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list comments"))
		return
	}

	respond(ctx, http.StatusOK, "comments", comments)
}

func UpdateComment(ctx *gin.Context) {
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

	var req UpdateCommentRequest
	bindErr := bindJSON(ctx, &req)

	var (
		comment   *models.Comment
		projectID uint
	)

	err = transaction(ctx, func(tx *gorm.DB) error {
		comment, err = mustExist[models.Comment](tx, id, "Comment")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		body, err := requireText("body", req.Body)
		if err != nil {
			return err
		}

		if !policy.CanEditComment(caller, comment.AuthorID) {
			return errs.Forbidden("Only the author can edit a comment")
		}

		story, err := mustExist[models.UserStory](tx, comment.UserStoryID, "User story")
		if err != nil {
			return err
		}
		projectID = story.ProjectID

		comment.Body = body

		if err := tx.Save(comment).Error; err != nil {
			return wrapInternal(err, "update comment %d", id)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "comment")
	respond(ctx, http.StatusOK, "comment", comment)
}

func DeleteComment(ctx *gin.Context) {
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

	var (
		comment   *models.Comment
		projectID uint
	)

	err = transaction(ctx, func(tx *gorm.DB) error {
		comment, err = mustExist[models.Comment](tx, id, "Comment")
		if err != nil {
			return err
		}

		story, err := mustExist[models.UserStory](tx, comment.UserStoryID, "User story")
		if err != nil {
			return err
		}
		projectID = story.ProjectID

		role, err := projectRole(tx, caller.ID, story.ProjectID)
		if err != nil {
			return err
		}

		if !policy.CanDeleteComment(caller, comment.AuthorID, role) {
			return errs.Forbidden("You cannot delete this comment")
		}

		if err := tx.Delete(&models.Comment{}, id).Error; err != nil {
			return wrapInternal(err, "delete comment %d", id)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "comment")
	respond(ctx, http.StatusOK, "comment", comment)
}
