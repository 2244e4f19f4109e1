package models

import (
	"github.com/monocle-dev/scrumboard/internal/types"
)

// TeamMember grants a user a role inside one project.
type TeamMember struct {
	BaseModel

	UserID    uint              `gorm:"not null;uniqueIndex:idx_user_project" json:"userId"`
	ProjectID uint              `gorm:"not null;uniqueIndex:idx_user_project" json:"projectId"`
	Role      types.ProjectRole `gorm:"not null" json:"role"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
