package models

type Evaluation struct {
	BaseModel

	RubricID    uint   `gorm:"not null;index" json:"rubricId"`
	ProjectID   uint   `gorm:"not null;index" json:"projectId"`
	EvaluatorID uint   `gorm:"not null;index" json:"evaluatorId"`
	Score       int    `gorm:"not null" json:"score"`
	Feedback    string `json:"feedback"`

	// Relationships
	Rubric    Rubric  `gorm:"foreignKey:RubricID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Project   Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Evaluator User    `gorm:"foreignKey:EvaluatorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
