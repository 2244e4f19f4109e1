package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/patch"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/gorm"
)

type CreateEvaluationRequest struct {
	RubricID  uint   `json:"rubricId" binding:"required"`
	ProjectID uint   `json:"projectId" binding:"required"`
	Score     *int   `json:"score" binding:"required"`
	Feedback  string `json:"feedback"`
}

type UpdateEvaluationRequest struct {
	Score    patch.Field[int]    `json:"score"`
	Feedback patch.Field[string] `json:"feedback"`
}

func CreateEvaluation(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req CreateEvaluationRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var evaluation *models.Evaluation
	err = transaction(ctx, func(tx *gorm.DB) error {
		rubric, err := mustReference[models.Rubric](tx, req.RubricID, "rubricId")
		if err != nil {
			return err
		}

		if _, err := mustReference[models.Project](tx, req.ProjectID, "projectId"); err != nil {
			return err
		}

		if err := checkScore(*req.Score, rubric.MaxScore); err != nil {
			return err
		}

		if !policy.CanEvaluate(caller.Role) {
			return errs.Forbidden("Only teachers and admins can evaluate projects")
		}

		evaluation = &models.Evaluation{
			RubricID:    req.RubricID,
			ProjectID:   req.ProjectID,
			EvaluatorID: caller.ID,
			Score:       *req.Score,
			Feedback:    req.Feedback,
		}

		if err := tx.Create(evaluation).Error; err != nil {
			return wrapInternal(err, "create evaluation")
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, "evaluation", evaluation)
}

func checkScore(score, maxScore int) error {
	if score < 0 || score > maxScore {
		return errs.Validation("score must be between 0 and %d", maxScore)
	}
	return nil
}

func GetEvaluations(ctx *gin.Context) {
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

		evaluation, err := mustExist[models.Evaluation](tx, id, "Evaluation")
		if err != nil {
			respondError(ctx, err)
			return
		}

		if err := authorizeEvaluationRead(tx, caller, evaluation.ProjectID); err != nil {
			respondError(ctx, err)
			return
		}

		respond(ctx, http.StatusOK, "evaluation", evaluation)
		return
	}

	projectID, byProject, err := utils.QueryID(ctx, "projectId")
	if err != nil {
		respondError(ctx, err)
		return
	}

	rubricID, byRubric, err := utils.QueryID(ctx, "rubricId")
	if err != nil {
		respondError(ctx, err)
		return
	}

	tx := store(ctx)

	query := tx.Order("id")

	switch {
	case byProject:
		if _, err := mustExist[models.Project](tx, projectID, "Project"); err != nil {
			respondError(ctx, err)
			return
		}
		if err := authorizeEvaluationRead(tx, caller, projectID); err != nil {
			respondError(ctx, err)
			return
		}
		query = query.Where("project_id = ?", projectID)
	case byRubric:
		if _, err := mustExist[models.Rubric](tx, rubricID, "Rubric"); err != nil {
			respondError(ctx, err)
			return
		}
		if !policy.CanEvaluate(caller.Role) {
			respondError(ctx, errs.Forbidden("Only teachers and admins can list evaluations by rubric"))
			return
		}
		query = query.Where("rubric_id = ?", rubricID)
	default:
		if !policy.CanEvaluate(caller.Role) {
			query = query.Where("project_id IN (?)", memberProjectIDs(tx, caller.ID))
		}
	}

	evaluations := []models.Evaluation{}
	if err := query.Find(&evaluations).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list evaluations"))
		return
	}

	respond(ctx, http.StatusOK, "evaluations", evaluations)
}

func authorizeEvaluationRead(tx *gorm.DB, caller types.Identity, projectID uint) error {
	role, err := projectRole(tx, caller.ID, projectID)
	if err != nil {
		return err
	}

	if !policy.CanReadEvaluations(caller, role) {
		return errs.Forbidden("You cannot view this project's evaluations")
	}

	return nil
}

func UpdateEvaluation(ctx *gin.Context) {
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

	var req UpdateEvaluationRequest
	bindErr := bindJSON(ctx, &req)

	var evaluation *models.Evaluation
	err = transaction(ctx, func(tx *gorm.DB) error {
		evaluation, err = mustExist[models.Evaluation](tx, id, "Evaluation")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		if req.Score.Set {
			if req.Score.Null {
				return errs.Validation("score cannot be null")
			}

			rubric, err := mustExist[models.Rubric](tx, evaluation.RubricID, "Rubric")
			if err != nil {
				return err
			}

			if err := checkScore(req.Score.Value, rubric.MaxScore); err != nil {
				return err
			}

			evaluation.Score = req.Score.Value
		}

		req.Feedback.Apply(&evaluation.Feedback)
		if req.Feedback.Null {
			evaluation.Feedback = ""
		}

		if !policy.CanModifyEvaluation(caller, evaluation.EvaluatorID) {
			return errs.Forbidden("Only the evaluator or an admin can modify this evaluation")
		}

		if err := tx.Save(evaluation).Error; err != nil {
			return wrapInternal(err, "update evaluation %d", id)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "evaluation", evaluation)
}

func DeleteEvaluation(ctx *gin.Context) {
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

	var evaluation *models.Evaluation
	err = transaction(ctx, func(tx *gorm.DB) error {
		evaluation, err = mustExist[models.Evaluation](tx, id, "Evaluation")
		if err != nil {
			return err
		}

		if !policy.CanModifyEvaluation(caller, evaluation.EvaluatorID) {
			return errs.Forbidden("Only the evaluator or an admin can delete this evaluation")
		}

		if err := tx.Delete(&models.Evaluation{}, id).Error; err != nil {
			return wrapInternal(err, "delete evaluation %d", id)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "evaluation", evaluation)
}
