package models

type Comment struct {
	BaseModel

	UserStoryID uint   `gorm:"not null;index" json:"userStoryId"`
	AuthorID    uint   `gorm:"not null;index" json:"authorId"`
	Body        string `gorm:"not null" json:"body"`

	// Relationships
	Author User `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
