package models

import (
	"github.com/monocle-dev/scrumboard/internal/types"
)

type Task struct {
	BaseModel

	ProjectID   uint             `gorm:"not null;index" json:"projectId"`
	SprintID    *uint            `gorm:"index" json:"sprintId"`
	UserStoryID *uint            `gorm:"index" json:"userStoryId"`
	AssigneeID  *uint            `gorm:"index" json:"assigneeId"`
	Title       string           `gorm:"not null" json:"title"`
	Description string           `json:"description"`
	Status      types.WorkStatus `gorm:"not null" json:"status"`
	Priority    types.Priority   `gorm:"not null" json:"priority"`
	StoryPoints *int             `json:"storyPoints"`

	// Relationships
	Project   Project    `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserStory *UserStory `gorm:"foreignKey:UserStoryID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Assignee  *User      `gorm:"foreignKey:AssigneeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}
