package models

import (
	"gorm.io/datatypes"
)

const DefaultRubricMaxScore = 100

type Rubric struct {
	BaseModel

	CreatorID   uint           `gorm:"not null;index" json:"creatorId"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	MaxScore    int            `gorm:"not null;default:100" json:"maxScore"`
	Criteria    datatypes.JSON `json:"criteria"`

	// Relationships
	Creator     User         `gorm:"foreignKey:CreatorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Evaluations []Evaluation `gorm:"foreignKey:RubricID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// RubricCriterion is one scored line of a rubric's Criteria.
type RubricCriterion struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Weight      int    `json:"weight"`
}
