package models

import (
	"github.com/monocle-dev/scrumboard/internal/types"
)

// UserStory belongs to a project and optionally to one of its sprints;
// a nil SprintID puts it on the backlog.
type UserStory struct {
	BaseModel

	ProjectID          uint             `gorm:"not null;index" json:"projectId"`
	SprintID           *uint            `gorm:"index" json:"sprintId"`
	Title              string           `gorm:"not null" json:"title"`
	Description        string           `json:"description"`
	AcceptanceCriteria string           `json:"acceptanceCriteria"`
	Status             types.WorkStatus `gorm:"not null" json:"status"`
	Priority           types.Priority   `gorm:"not null" json:"priority"`
	StoryPoints        *int             `json:"storyPoints"`

	// Relationships
	Project  Project   `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Comments []Comment `gorm:"foreignKey:UserStoryID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
