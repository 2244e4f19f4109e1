package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/patch"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateRubricRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	MaxScore    *int                     `json:"maxScore"`
	Criteria    []models.RubricCriterion `json:"criteria"`
}

type UpdateRubricRequest struct {
	Name        patch.Field[string]                   `json:"name"`
	Description patch.Field[string]                   `json:"description"`
	MaxScore    patch.Field[int]                      `json:"maxScore"`
	Criteria    patch.Field[[]models.RubricCriterion] `json:"criteria"`
}

func CreateRubric(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req CreateRubricRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var rubric *models.Rubric
	err = transaction(ctx, func(tx *gorm.DB) error {
		rubric, err = createRubric(tx, caller, req)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, "rubric", rubric)
}

func createRubric(tx *gorm.DB, caller types.Identity, req CreateRubricRequest) (*models.Rubric, error) {
	name, err := requireText("name", req.Name)
	if err != nil {
		return nil, err
	}

	maxScore := models.DefaultRubricMaxScore
	if req.MaxScore != nil {
		maxScore = *req.MaxScore
	}

	if maxScore <= 0 {
		return nil, errs.Validation("maxScore must be positive")
	}

	criteria, err := encodeCriteria(req.Criteria)
	if err != nil {
		return nil, err
	}

	if !policy.CanCreateRubric(caller.Role) {
		return nil, errs.Forbidden("Only teachers and admins can create rubrics")
	}

	rubric := models.Rubric{
		CreatorID:   caller.ID,
		Name:        name,
		Description: req.Description,
		MaxScore:    maxScore,
		Criteria:    criteria,
	}

	if err := tx.Create(&rubric).Error; err != nil {
		return nil, wrapInternal(err, "create rubric")
	}

	return &rubric, nil
}

func encodeCriteria(criteria []models.RubricCriterion) (datatypes.JSON, error) {
	if criteria == nil {
		return datatypes.JSON("[]"), nil
	}

	for i, c := range criteria {
		if c.Name == "" {
			return nil, errs.Validation("criteria[%d].name is required", i)
		}
		if c.Weight < 0 {
			return nil, errs.Validation("criteria[%d].weight must not be negative", i)
		}
	}

	raw, err := json.Marshal(criteria)
	if err != nil {
		return nil, errs.Validation("Invalid criteria")
	}

	return datatypes.JSON(raw), nil
}

// GetRubrics serves ?id= to any signed-in user, ?creatorId= to the creator
// and staff, and the full listing to staff only.
func GetRubrics(ctx *gin.Context) {
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

		rubric, err := mustExist[models.Rubric](tx, id, "Rubric")
		if err != nil {
			respondError(ctx, err)
			return
		}

		respond(ctx, http.StatusOK, "rubric", rubric)
		return
	}

	creatorID, byCreator, err := utils.QueryID(ctx, "creatorId")
	if err != nil {
		respondError(ctx, err)
		return
	}

	tx := store(ctx)

	query := tx.Order("id")

	if byCreator {
		if !policy.CanListRubricsByCreator(caller, creatorID) {
			respondError(ctx, errs.Forbidden("You cannot list another user's rubrics"))
			return
		}
		if _, err := mustExist[models.User](tx, creatorID, "User"); err != nil {
			respondError(ctx, err)
			return
		}
		query = query.Where("creator_id = ?", creatorID)
	} else if !policy.CanListAllRubrics(caller.Role) {
		respondError(ctx, errs.Forbidden("Only teachers and admins can list all rubrics"))
		return
	}

	rubrics := []models.Rubric{}
	if err := query.Find(&rubrics).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list rubrics"))
		return
	}

	respond(ctx, http.StatusOK, "rubrics", rubrics)
}

func UpdateRubric(ctx *gin.Context) {
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

	var req UpdateRubricRequest
	bindErr := bindJSON(ctx, &req)

	var rubric *models.Rubric
	err = transaction(ctx, func(tx *gorm.DB) error {
		existing, err := mustExist[models.Rubric](tx, id, "Rubric")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		rubric, err = updateRubric(tx, caller, existing, req)
		return err
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "rubric", rubric)
}

func updateRubric(tx *gorm.DB, caller types.Identity, rubric *models.Rubric, req UpdateRubricRequest) (*models.Rubric, error) {
	updated := *rubric

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

	if req.MaxScore.Set {
		// Clearing the maximum restores the default.
		updated.MaxScore = models.DefaultRubricMaxScore
		if req.MaxScore.HasValue() {
			updated.MaxScore = req.MaxScore.Value
		}

		if updated.MaxScore <= 0 {
			return nil, errs.Validation("maxScore must be positive")
		}
	}

	if req.Criteria.Set {
		criteria, err := encodeCriteria(req.Criteria.Value)
		if err != nil {
			return nil, err
		}
		updated.Criteria = criteria
	}

	if updated.MaxScore < rubric.MaxScore {
		var highest int
		err := tx.Model(&models.Evaluation{}).
			Select("COALESCE(MAX(score), 0)").
			Where("rubric_id = ?", rubric.ID).
			Scan(&highest).Error
		if err != nil {
			return nil, wrapInternal(err, "load highest score of rubric %d", rubric.ID)
		}

		if highest > updated.MaxScore {
			return nil, errs.Validation("maxScore cannot be lower than an existing evaluation score (%d)", highest)
		}
	}

	if !policy.CanModifyRubric(caller, rubric.CreatorID) {
		return nil, errs.Forbidden("Only the rubric's creator or an admin can modify it")
	}

	if err := tx.Save(&updated).Error; err != nil {
		return nil, wrapInternal(err, "update rubric %d", rubric.ID)
	}

	return &updated, nil
}

func DeleteRubric(ctx *gin.Context) {
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

	var rubric *models.Rubric
	err = transaction(ctx, func(tx *gorm.DB) error {
		rubric, err = mustExist[models.Rubric](tx, id, "Rubric")
		if err != nil {
			return err
		}

		if !policy.CanModifyRubric(caller, rubric.CreatorID) {
			return errs.Forbidden("Only the rubric's creator or an admin can delete it")
		}

		if err := tx.Where("rubric_id = ?", id).Delete(&models.Evaluation{}).Error; err != nil {
			return wrapInternal(err, "delete evaluations of rubric %d", id)
		}

		if err := tx.Delete(&models.Rubric{}, id).Error; err != nil {
			return wrapInternal(err, "delete rubric %d", id)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "rubric", rubric)
}
