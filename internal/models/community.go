package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Community is a campus interest group surfaced by search.
type Community struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name         string    `gorm:"index;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Category     string    `json:"category"`
	MembersCount int64     `gorm:"default:0" json:"members_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName maps Community to the communities relation
func (Community) TableName() string {
	return "communities"
}

func (c *Community) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// All returns the prototype set used for migration and the generic gateway's
// table registry.
func All() []any {
	return []any{
		&Profile{},
		&Post{},
		&PostLike{},
		&Repost{},
		&Bookmark{},
		&Comment{},
		&Follow{},
		&Community{},
	}
}
