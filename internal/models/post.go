// Package models defines the relations the TrailTalk gateway exposes.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post categories shown in the campus feed
const (
	CategoryAcademics = "Academics"
	CategoryRant      = "Rant"
	CategorySupport   = "Support"
	CategoryCampus    = "Campus"
	CategoryGeneral   = "General"
)

// Categories lists every valid post category.
var Categories = []string{
	CategoryAcademics,
	CategoryRant,
	CategorySupport,
	CategoryCampus,
	CategoryGeneral,
}

// ValidCategory reports whether c is a known post category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Post is a campus feed post.
//
// The *_count columns are denormalized caches of the related tables. They are
// updated opportunistically and always overwritten by a fresh count query on
// read, so they must never be treated as authoritative.
type Post struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	AuthorID    string `gorm:"type:uuid;index;not null" json:"author_id"`
	Content     string `gorm:"type:text;not null" json:"content"`
	Category    string `gorm:"not null;default:'General'" json:"category"`
	IsAnonymous bool   `gorm:"default:false" json:"is_anonymous"`

	// AuthorInitials holds the display string captured at post time:
	// either a full name or 2-3 character initials.
	AuthorInitials string `json:"author_initials"`

	LikesCount     int64 `gorm:"default:0" json:"likes_count"`
	CommentsCount  int64 `gorm:"default:0" json:"comments_count"`
	RepostsCount   int64 `gorm:"default:0" json:"reposts_count"`
	BookmarksCount int64 `gorm:"default:0" json:"bookmarks_count"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName maps Post to the posts relation
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a UUID when none was provided
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
