package models

import "time"

// BaseModel is the hard-delete counterpart of gorm.Model used by board
// entities: a deleted sprint, story or task is gone, not hidden.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
