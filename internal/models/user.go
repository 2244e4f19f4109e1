package models

import (
	"github.com/monocle-dev/scrumboard/internal/types"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model

	Name         string           `gorm:"not null"`
	Email        string           `gorm:"uniqueIndex;not null"`
	PasswordHash string           `gorm:"not null"`
	Role         types.GlobalRole `gorm:"not null;default:student"`

	// Relationships
	OwnedProjects []Project    `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	TeamMembers   []TeamMember `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (u User) Identity() types.Identity {
	return types.Identity{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

func (u User) Response() types.UserResponse {
	return types.UserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
