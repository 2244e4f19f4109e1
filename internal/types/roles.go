package types

import "strings"

// GlobalRole is a user's application-wide role. It governs rubrics,
// evaluations and user administration, never project data.
type GlobalRole string

const (
	RoleAdmin   GlobalRole = "admin"
	RoleTeacher GlobalRole = "teacher"
	RoleStudent GlobalRole = "student"
)

func (r GlobalRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

func ParseGlobalRole(s string) (GlobalRole, bool) {
	r := GlobalRole(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// ProjectRole is a user's role inside one project, stored on the team member row.
type ProjectRole string

const (
	ProjectRoleNone ProjectRole = ""
	ProjectOwner    ProjectRole = "PROJECT_OWNER"
	ScrumMaster     ProjectRole = "SCRUM_MASTER"
	Developer       ProjectRole = "DEVELOPER"
)

func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectOwner, ScrumMaster, Developer:
		return true
	}
	return false
}

func ParseProjectRole(s string) (ProjectRole, bool) {
	r := ProjectRole(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}
