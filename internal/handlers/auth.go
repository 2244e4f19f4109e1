package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/auth"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/types"
	"gorm.io/gorm"
)

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateMeRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email" binding:"omitempty,email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"omitempty,min=8"`
}

type DeleteMeRequest struct {
	Password string `json:"password" binding:"required"`
}

// Signup registers a student account and starts a session for it.
func Signup(ctx *gin.Context) {
	var req SignupRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var user models.User
	err := transaction(ctx, func(tx *gorm.DB) error {
		name, err := requireText("name", req.Name)
		if err != nil {
			return err
		}

		email := auth.NormalizeEmail(req.Email)
		if err := checkEmailFree(tx, email, 0); err != nil {
			return err
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return wrapInternal(err, "hash password")
		}

		user = models.User{Name: name, Email: email, PasswordHash: hash, Role: types.RoleStudent}

		if err := tx.Create(&user).Error; err != nil {
			return wrapInternal(err, "create user")
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	if err := startSession(ctx, user); err != nil {
		respondError(ctx, err)
		return
	}

	logging.Logger.Info("user signed up", "user_id", user.ID)
	respond(ctx, http.StatusCreated, "user", user.Response())
}

func checkEmailFree(tx *gorm.DB, email string, exceptID uint) error {
	var existing models.User

	// Soft-deleted rows still hold the unique index.
	err := tx.Unscoped().Where("email = ? AND id <> ?", email, exceptID).First(&existing).Error

	if err == nil {
		return errs.Validation("Email already exists")
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapInternal(err, "check email")
	}

	return nil
}

func startSession(ctx *gin.Context, user models.User) error {
	token, err := auth.GenerateSessionToken(user.ID, user.Role)
	if err != nil {
		return wrapInternal(err, "generate session token")
	}

	auth.SetSessionCookie(ctx.Writer, token)
	return nil
}

func Login(ctx *gin.Context) {
	var req LoginRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	user, err := auth.Authenticate(store(ctx), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(ctx, errs.Unauthenticated("Invalid email or password"))
			return
		}
		respondError(ctx, wrapInternal(err, "authenticate"))
		return
	}

	if err := startSession(ctx, *user); err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "user", user.Response())
}

func Logout(ctx *gin.Context) {
	auth.ClearSessionCookie(ctx.Writer)
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

func Me(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "user", types.UserResponse(caller))
}

// UpdateMe changes the caller's name, email or password. A new password
// requires the current one.
func UpdateMe(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req UpdateMeRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var user *models.User
	err = transaction(ctx, func(tx *gorm.DB) error {
		user, err = mustExist[models.User](tx, caller.ID, "User")
		if err != nil {
			return err
		}

		updates := map[string]any{}

		if name := strings.TrimSpace(req.Name); name != "" {
			updates["name"] = name
		}

		if req.Email != "" {
			email := auth.NormalizeEmail(req.Email)
			if err := checkEmailFree(tx, email, user.ID); err != nil {
				return err
			}
			updates["email"] = email
		}

		if req.NewPassword != "" {
			if req.CurrentPassword == "" {
				return errs.Validation("currentPassword is required to change password")
			}

			if !auth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
				return errs.Validation("Current password is incorrect")
			}

			hash, err := auth.HashPassword(req.NewPassword)
			if err != nil {
				return wrapInternal(err, "hash password")
			}

			updates["password_hash"] = hash
		}

		if len(updates) == 0 {
			return errs.Validation("No valid fields to update")
		}

		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return wrapInternal(err, "update user %d", user.ID)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "user", user.Response())
}

// DeleteMe removes the caller's account after re-checking the password.
// Sole owners must hand their projects over first.
func DeleteMe(ctx *gin.Context) {
	caller, err := currentUser(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req DeleteMeRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var user *models.User
	err = transaction(ctx, func(tx *gorm.DB) error {
		user, err = mustExist[models.User](tx, caller.ID, "User")
		if err != nil {
			return err
		}

		if !auth.VerifyPassword(user.PasswordHash, req.Password) {
			return errs.Validation("Incorrect password")
		}

		var owned []models.TeamMember
		if err := tx.Where("user_id = ? AND role = ?", user.ID, types.ProjectOwner).Find(&owned).Error; err != nil {
			return wrapInternal(err, "load owned projects")
		}

		for _, member := range owned {
			if err := checkNotLastOwner(tx, member.ProjectID); err != nil {
				return errs.Validation("Transfer ownership of project %d before deleting your account", member.ProjectID)
			}
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return wrapInternal(err, "remove memberships of user %d", user.ID)
		}

		if err := tx.Model(&models.Task{}).Where("assignee_id = ?", user.ID).Update("assignee_id", nil).Error; err != nil {
			return wrapInternal(err, "unassign tasks of user %d", user.ID)
		}

		// Release the address so it can sign up again.
		tombstone := fmt.Sprintf("deleted-%d-%s", user.ID, user.Email)
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("email", tombstone).Error; err != nil {
			return wrapInternal(err, "release email of user %d", user.ID)
		}

		if err := tx.Delete(&models.User{}, user.ID).Error; err != nil {
			return wrapInternal(err, "delete user %d", user.ID)
		}

		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	auth.ClearSessionCookie(ctx.Writer)
	respond(ctx, http.StatusOK, "user", user.Response())
}
