package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultAnonymousName is shown when a comment is posted anonymously
// and no custom display name was chosen.
const DefaultAnonymousName = "Anonymous User"

// Comment is one entry in a post's thread, ordered by CreatedAt ascending.
//
// UserID is always recorded, even for anonymous comments; display code must
// suppress the author identity whenever IsAnonymous is set.
type Comment struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID        string `gorm:"type:uuid;index;not null" json:"post_id"`
	UserID        string `gorm:"type:uuid;index;not null" json:"user_id"`
	Content       string `gorm:"type:text;not null" json:"content"`
	IsAnonymous   bool   `gorm:"default:false" json:"is_anonymous"`
	AnonymousName string `gorm:"default:'Anonymous User'" json:"anonymous_name"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Author is attached at read time from the profiles relation; never
	// populated for anonymous comments.
	Author *Profile `gorm:"-" json:"author,omitempty"`
}

// TableName maps Comment to the comments relation
func (Comment) TableName() string {
	return "comments"
}

// BeforeCreate assigns a UUID and the default anonymous name
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.IsAnonymous && c.AnonymousName == "" {
		c.AnonymousName = DefaultAnonymousName
	}
	return nil
}

// DisplayName returns the author identity to render for the comment.
// Anonymous comments always resolve to the anonymous name, never the profile.
func (c *Comment) DisplayName() string {
	if c.IsAnonymous {
		if c.AnonymousName != "" {
			return c.AnonymousName
		}
		return DefaultAnonymousName
	}
	if c.Author != nil {
		return c.Author.BestDisplayName()
	}
	return "User"
}
