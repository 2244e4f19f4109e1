package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/auth"
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/realtime"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/monocle-dev/scrumboard/internal/utils"
	"gorm.io/gorm"
)

type AddMemberRequest struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role" binding:"required"`
}

type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

type MemberResponse struct {
	UserID    uint              `json:"userId"`
	ProjectID uint              `json:"projectId"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Role      types.ProjectRole `json:"role"`
	JoinedAt  time.Time         `json:"joinedAt"`
}

func memberResponse(member models.TeamMember, user models.User) MemberResponse {
	return MemberResponse{
		UserID:    member.UserID,
		ProjectID: member.ProjectID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      member.Role,
		JoinedAt:  member.CreatedAt,
	}
}

func parseProjectRole(value string) (types.ProjectRole, error) {
	role, ok := types.ParseProjectRole(value)
	if !ok {
		return types.ProjectRoleNone, errs.Validation("Invalid role %q", value)
	}
	return role, nil
}

// authorizeMembers loads the project and checks the caller may apply action
// to its team.
func authorizeMembers(tx *gorm.DB, caller types.Identity, projectID uint, action policy.Action) error {
	if _, err := mustExist[models.Project](tx, projectID, "Project"); err != nil {
		return err
	}

	role, err := projectRole(tx, caller.ID, projectID)
	if err != nil {
		return err
	}

	return policy.Authorize(role, action, policy.ResourceTeamMember)
}

func ListMembers(ctx *gin.Context) {
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

	if err := authorizeMembers(tx, caller, projectID, policy.ActionRead); err != nil {
		respondError(ctx, err)
		return
	}

	var members []models.TeamMember
	if err := tx.Preload("User").Where("project_id = ?", projectID).Order("id").Find(&members).Error; err != nil {
		respondError(ctx, wrapInternal(err, "list members of project %d", projectID))
		return
	}

	response := make([]MemberResponse, 0, len(members))
	for _, member := range members {
		response = append(response, memberResponse(member, member.User))
	}

	respond(ctx, http.StatusOK, "members", response)
}

// AddMember adds an existing user, looked up by userId or email. Only
// callers allowed to manage the team learn whether the account exists.
func AddMember(ctx *gin.Context) {
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

	var req AddMemberRequest
	if err := bindJSON(ctx, &req); err != nil {
		respondError(ctx, err)
		return
	}

	var response MemberResponse
	err = transaction(ctx, func(tx *gorm.DB) error {
		if err := authorizeMembers(tx, caller, projectID, policy.ActionCreate); err != nil {
			return err
		}

		role, err := parseProjectRole(req.Role)
		if err != nil {
			return err
		}

		user, err := lookupMember(tx, req)
		if err != nil {
			return err
		}

		existing, err := projectRole(tx, user.ID, projectID)
		if err != nil {
			return err
		}

		if existing != types.ProjectRoleNone {
			return errs.Validation("User is already a member of this project")
		}

		member := models.TeamMember{UserID: user.ID, ProjectID: projectID, Role: role}

		if err := tx.Create(&member).Error; err != nil {
			return wrapInternal(err, "add member to project %d", projectID)
		}

		response = memberResponse(member, *user)
		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "member")
	respond(ctx, http.StatusCreated, "member", response)
}

func lookupMember(tx *gorm.DB, req AddMemberRequest) (*models.User, error) {
	if req.UserID != 0 {
		return mustReference[models.User](tx, req.UserID, "userId")
	}

	if req.Email == "" {
		return nil, errs.Validation("userId or email is required")
	}

	var user models.User
	err := tx.Where("email = ?", auth.NormalizeEmail(req.Email)).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Validation("No user with email %s", req.Email)
	}

	if err != nil {
		return nil, wrapInternal(err, "look up member by email")
	}

	return &user, nil
}

func UpdateMember(ctx *gin.Context) {
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

	userID, err := utils.ParamID(ctx, "user_id", "user id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req UpdateMemberRequest
	bindErr := bindJSON(ctx, &req)

	var response MemberResponse
	err = transaction(ctx, func(tx *gorm.DB) error {
		if _, err := mustExist[models.Project](tx, projectID, "Project"); err != nil {
			return err
		}

		member, err := loadMember(tx, projectID, userID)
		if err != nil {
			return err
		}

		if bindErr != nil {
			return bindErr
		}

		role, err := parseProjectRole(req.Role)
		if err != nil {
			return err
		}

		if err := authorizeMembers(tx, caller, projectID, policy.ActionUpdate); err != nil {
			return err
		}

		if member.Role == types.ProjectOwner && role != types.ProjectOwner {
			if err := checkNotLastOwner(tx, projectID); err != nil {
				return err
			}
		}

		member.Role = role

		if err := tx.Model(member).Update("role", role).Error; err != nil {
			return wrapInternal(err, "update member %d of project %d", userID, projectID)
		}

		response = memberResponse(*member, member.User)
		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "member")
	respond(ctx, http.StatusOK, "member", response)
}

// RemoveMember removes a user from the team. Any member may remove themselves.
func RemoveMember(ctx *gin.Context) {
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

	userID, err := utils.ParamID(ctx, "user_id", "user id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	var response MemberResponse
	err = transaction(ctx, func(tx *gorm.DB) error {
		if _, err := mustExist[models.Project](tx, projectID, "Project"); err != nil {
			return err
		}

		member, err := loadMember(tx, projectID, userID)
		if err != nil {
			return err
		}

		if userID != caller.ID {
			if err := authorizeMembers(tx, caller, projectID, policy.ActionDelete); err != nil {
				return err
			}
		}

		if member.Role == types.ProjectOwner {
			if err := checkNotLastOwner(tx, projectID); err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.TeamMember{}, member.ID).Error; err != nil {
			return wrapInternal(err, "remove member %d of project %d", userID, projectID)
		}

		response = memberResponse(*member, member.User)
		return nil
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	realtime.Default.BroadcastRefresh(projectID, "member")
	respond(ctx, http.StatusOK, "member", response)
}

func loadMember(tx *gorm.DB, projectID, userID uint) (*models.TeamMember, error) {
	var member models.TeamMember

	err := tx.Preload("User").Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("Member not found")
	}

	if err != nil {
		return nil, wrapInternal(err, "load member %d of project %d", userID, projectID)
	}

	return &member, nil
}

func checkNotLastOwner(tx *gorm.DB, projectID uint) error {
	var owners int64

	err := tx.Model(&models.TeamMember{}).
		Where("project_id = ? AND role = ?", projectID, types.ProjectOwner).
		Count(&owners).Error

	if err != nil {
		return wrapInternal(err, "count owners of project %d", projectID)
	}

	if owners <= 1 {
		return errs.Validation("A project must keep at least one PROJECT_OWNER")
	}

	return nil
}
