package models

import (
	"time"

	"github.com/monocle-dev/scrumboard/internal/types"
)

type Sprint struct {
	BaseModel

	ProjectID   uint               `gorm:"not null;index" json:"projectId"`
	Name        string             `gorm:"not null" json:"name"`
	Description string             `json:"description"`
	StartDate   time.Time          `gorm:"not null" json:"startDate"`
	EndDate     time.Time          `gorm:"not null" json:"endDate"`
	Status      types.SprintStatus `gorm:"not null;index" json:"status"`

	// Relationships
	Project     Project     `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserStories []UserStory `gorm:"foreignKey:SprintID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Tasks       []Task      `gorm:"foreignKey:SprintID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}
