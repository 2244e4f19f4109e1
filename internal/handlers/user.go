package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/gorm"
)

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func requireUserAdmin(caller types.Identity) error {
	if !policy.CanManageUsers(caller.Role) {
		return errs.Forbidden("Only admins can manage users")
	}
	return nil
}

func ListUsers(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if err := requireUserAdmin(caller); err != nil {
		respondError(ctx, err)
		return
	}

	query := store(ctx).Order("id")

	if raw := ctx.Query("role"); raw != "" {
		role, ok := types.ParseGlobalRole(raw)
		if !ok {
			respondError(ctx, errs.Validation("Invalid role %q", raw))
			return
		}
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list users"))
		return
	}

	response := make([]types.UserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, user.Response())
	}

	respond(ctx, http.StatusOK, "users", response)
}

// UpdateUserRole changes a user's global role. Admins cannot demote
// themselves.
func UpdateUserRole(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	userID, err := utils.ParamID(ctx, "user_id", "user id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req UpdateRoleRequest
	bindErr := bindJSON(ctx, &req)

	var user *models.User
	err = transaction(ctx, func(tx *gorm.DB) error {
		user, err = mustExist[models.User](tx, userID, "User")
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		role, ok := types.ParseGlobalRole(req.Role)
		if !ok {
			return errs.Validation("Invalid role %q", req.Role)
		}

		if err := requireUserAdmin(caller); err != nil {
			return err
		}

		if user.ID == caller.ID {
			return errs.Validation("You cannot change your own role")
		}

		user.Role = role

		if err := tx.Model(user).Update("role", role).Error; err != nil {
			return wrapInternal(err, "update role of user %d", userID)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "user", user.Response())
}
