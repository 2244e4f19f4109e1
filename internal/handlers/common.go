package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/monocle-dev/scrumboard/db"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/gorm"
)

var registerOnce sync.Once

// RegisterValidation makes binding errors name fields by their json key.
func RegisterValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
}

func respond(ctx *gin.Context, status int, key string, value any) {
	ctx.JSON(status, gin.H{"success": true, key: value})
}

// respondError writes err as {"error": msg}. Anything outside the errs
// taxonomy is logged and reported as a bare internal error.
func respondError(ctx *gin.Context, err error) {
	kind := errs.KindOf(err)

	if kind == errs.KindInternal {
		logging.Logger.Error("request failed",
			"method", ctx.Request.Method,
			"path", ctx.Request.URL.Path,
			"request_id", utils.GetRequestID(ctx),
			"err", err,
		)
	}

	ctx.AbortWithStatusJSON(kind.Status(), gin.H{"error": errs.PublicMessage(err)})
}

func currentUser(ctx *gin.Context) (types.Identity, error) {
	caller, err := utils.GetCurrentUser(ctx)

	if err != nil {
		return types.Identity{}, errs.Unauthenticated("User not authenticated")
	}

	return caller, nil
}

// requiredID reads the mandatory ?id= query parameter.
func requiredID(ctx *gin.Context) (uint, error) {
	id, ok, err := utils.QueryID(ctx, "id")

	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, errs.Validation("id is required")
	}

	return id, nil
}

func bindJSON(ctx *gin.Context, dst any) error {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]

		switch fe.Tag() {
		case "required":
			return errs.Validation("%s is required", fe.Field())
		case "email":
			return errs.Validation("%s must be a valid email", fe.Field())
		case "min":
			return errs.Validation("%s must be at least %s characters", fe.Field(), fe.Param())
		default:
			return errs.Validation("%s is invalid", fe.Field())
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errs.Validation("Invalid value for %s", typeErr.Field)
	}

	if errors.Is(err, io.EOF) {
		return errs.Validation("Request body is required")
	}

	return errs.Validation("Invalid request body")
}

// transaction runs fn in one database transaction bound to the request.
func transaction(ctx *gin.Context, fn func(tx *gorm.DB) error) error {
	return db.DB.WithContext(ctx.Request.Context()).Transaction(fn)
}

func store(ctx *gin.Context) *gorm.DB {
	return db.DB.WithContext(ctx.Request.Context())
}

// mustExist loads the row with id or fails with NotFoundError.
func mustExist[T any](tx *gorm.DB, id uint, label string) (*T, error) {
	var row T

	if err := tx.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("%s not found", label)
		}
		return nil, errs.Internal(fmt.Errorf("load %s %d: %w", label, id, err))
	}

	return &row, nil
}

// mustReference loads a row referenced from a payload field; a dangling
// reference is a ValidationError naming the field.
func mustReference[T any](tx *gorm.DB, id uint, field string) (*T, error) {
	var row T

	if err := tx.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Validation("%s %d does not exist", field, id)
		}
		return nil, errs.Internal(fmt.Errorf("load %s %d: %w", field, id, err))
	}

	return &row, nil
}

// projectRole returns the caller's role in projectID, or ProjectRoleNone.
func projectRole(tx *gorm.DB, userID, projectID uint) (types.ProjectRole, error) {
	var member models.TeamMember

	err := tx.Where("user_id = ? AND project_id = ?", userID, projectID).First(&member).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ProjectRoleNone, nil
		}
		return types.ProjectRoleNone, errs.Internal(fmt.Errorf("load membership: %w", err))
	}

	return member.Role, nil
}

// memberProjectIDs is a subquery of the projects userID belongs to.
func memberProjectIDs(tx *gorm.DB, userID uint) *gorm.DB {
	return tx.Model(&models.TeamMember{}).Select("project_id").Where("user_id = ?", userID)
}

func wrapInternal(err error, format string, args ...any) error {
	return errs.Internal(fmt.Errorf(format+": %w", append(args, err)...))
}

func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errs.Validation("%s is required", field)
	}
	return value, nil
}

func checkStoryPoints(points *int) error {
	if points != nil && *points < 0 {
		return errs.Validation("storyPoints must not be negative")
	}
	return nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, errs.Validation("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

func parseWorkStatus(value string) (types.WorkStatus, error) {
	status, ok := types.ParseWorkStatus(value)
	if !ok {
		return "", errs.Validation("Invalid status %q", value)
	}
	return status, nil
}

func parsePriority(value string) (types.Priority, error) {
	priority, ok := types.ParsePriority(value)
	if !ok {
		return "", errs.Validation("Invalid priority %q", value)
	}
	return priority, nil
}

// checkSprintInProject verifies that sprintID, when set, names a sprint of projectID.
func checkSprintInProject(tx *gorm.DB, sprintID *uint, projectID uint) error {
	if sprintID == nil {
		return nil
	}

	sprint, err := mustReference[models.Sprint](tx, *sprintID, "sprintId")
	if err != nil {
		return err
	}

	if sprint.ProjectID != projectID {
		return errs.Validation("Sprint %d does not belong to project %d", sprint.ID, projectID)
	}

	return nil
}
