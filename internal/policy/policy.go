// Package policy decides who may do what. Project-scoped resources are
// decided purely from the caller's project role; rubrics, evaluations and
// user administration from the caller's global role. Nothing here touches
// the database or HTTP.
package policy

import (
	"github.com/monocle-dev/scrumboard/internal/errs"
	"github.com/monocle-dev/scrumboard/internal/types"
)

type Action int

const (
	ActionCreate Action = iota
	ActionRead
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type Resource int

const (
	ResourceSprint Resource = iota
	ResourceUserStory
	ResourceTask
	ResourceProject
	ResourceTeamMember
	ResourceComment
	ResourceEvaluation
)

func (r Resource) String() string {
	switch r {
	case ResourceSprint:
		return "sprint"
	case ResourceUserStory:
		return "user story"
	case ResourceTask:
		return "task"
	case ResourceProject:
		return "project"
	case ResourceTeamMember:
		return "team member"
	case ResourceComment:
		return "comment"
	case ResourceEvaluation:
		return "evaluation"
	default:
		return "resource"
	}
}

type roleSet map[types.ProjectRole]bool

var (
	anyMember    = roleSet{types.ProjectOwner: true, types.ScrumMaster: true, types.Developer: true}
	managers     = roleSet{types.ProjectOwner: true, types.ScrumMaster: true}
	ownerOnly    = roleSet{types.ProjectOwner: true}
	boardActions = map[Action]roleSet{
		ActionCreate: managers,
		ActionRead:   anyMember,
		ActionUpdate: managers,
		ActionDelete: managers,
	}
)

var decisions = map[Resource]map[Action]roleSet{
	ResourceSprint:    boardActions,
	ResourceUserStory: boardActions,
	ResourceTask:      boardActions,
	ResourceProject: {
		ActionRead:   anyMember,
		ActionUpdate: ownerOnly,
		ActionDelete: ownerOnly,
	},
	ResourceTeamMember: {
		ActionCreate: ownerOnly,
		ActionRead:   anyMember,
		ActionUpdate: ownerOnly,
		ActionDelete: ownerOnly,
	},
	// Authors may always delete their own comments; see CanDeleteComment.
	ResourceComment: {
		ActionCreate: anyMember,
		ActionRead:   anyMember,
		ActionDelete: managers,
	},
	// Evaluations are written by teachers, see CanEvaluate.
	ResourceEvaluation: {
		ActionRead: anyMember,
	},
}

// CanPerform reports whether a caller holding role in a project may apply
// action to resource in that project. ProjectRoleNone is never allowed.
func CanPerform(role types.ProjectRole, action Action, resource Resource) bool {
	if !role.Valid() {
		return false
	}
	return decisions[resource][action][role]
}

// Authorize is CanPerform as an error: a denial is always a ForbiddenError.
func Authorize(role types.ProjectRole, action Action, resource Resource) error {
	if CanPerform(role, action, resource) {
		return nil
	}
	if role == types.ProjectRoleNone {
		return errs.Forbidden("You are not a member of this project")
	}
	return errs.Forbidden("Your project role does not allow you to %s this %s", action, resource)
}

func CanCreateRubric(role types.GlobalRole) bool {
	return role == types.RoleTeacher || role == types.RoleAdmin
}

func CanModifyRubric(caller types.Identity, creatorID uint) bool {
	return caller.IsAdmin() || caller.ID == creatorID
}

func CanListAllRubrics(role types.GlobalRole) bool {
	return role == types.RoleTeacher || role == types.RoleAdmin
}

func CanListRubricsByCreator(caller types.Identity, creatorID uint) bool {
	return caller.ID == creatorID || CanListAllRubrics(caller.Role)
}

func CanEvaluate(role types.GlobalRole) bool {
	return role == types.RoleTeacher || role == types.RoleAdmin
}

// CanReadEvaluations covers evaluations of a project the caller may not be
// a member of.
func CanReadEvaluations(caller types.Identity, projectRole types.ProjectRole) bool {
	return CanEvaluate(caller.Role) || CanPerform(projectRole, ActionRead, ResourceEvaluation)
}

func CanModifyEvaluation(caller types.Identity, evaluatorID uint) bool {
	return caller.IsAdmin() || caller.ID == evaluatorID
}

func CanDeleteComment(caller types.Identity, authorID uint, projectRole types.ProjectRole) bool {
	if caller.ID == authorID && projectRole.Valid() {
		return true
	}
	return CanPerform(projectRole, ActionDelete, ResourceComment)
}

func CanManageUsers(role types.GlobalRole) bool {
	return role == types.RoleAdmin
}

// CanEditComment holds for the author only; admins moderate by deleting.
func CanEditComment(caller types.Identity, authorID uint) bool {
	return caller.ID == authorID
}
