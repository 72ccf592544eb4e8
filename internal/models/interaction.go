package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostLike marks that a user liked a post. Row existence is the sole source
// of truth for the interaction; unliking deletes the row.
type PostLike struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	PostID    string    `gorm:"type:uuid;uniqueIndex:idx_post_likes_pair;not null" json:"post_id"`
	UserID    string    `gorm:"type:uuid;uniqueIndex:idx_post_likes_pair;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName maps PostLike to the post_likes relation
func (PostLike) TableName() string {
	return "post_likes"
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Repost marks that a user reposted a post.
type Repost struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	PostID    string    `gorm:"type:uuid;uniqueIndex:idx_reposts_pair;not null" json:"post_id"`
	UserID    string    `gorm:"type:uuid;uniqueIndex:idx_reposts_pair;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName maps Repost to the reposts relation
func (Repost) TableName() string {
	return "reposts"
}

func (r *Repost) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// Bookmark marks that a user bookmarked a post.
type Bookmark struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	PostID    string    `gorm:"type:uuid;uniqueIndex:idx_bookmarks_pair;not null" json:"post_id"`
	UserID    string    `gorm:"type:uuid;uniqueIndex:idx_bookmarks_pair;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName maps Bookmark to the bookmarks relation
func (Bookmark) TableName() string {
	return "bookmarks"
}

func (b *Bookmark) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// Follow records that follower follows another user's posts.
type Follow struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	FollowerUserID  string    `gorm:"type:uuid;uniqueIndex:idx_follows_pair;not null" json:"follower_user_id"`
	FollowingUserID string    `gorm:"type:uuid;uniqueIndex:idx_follows_pair;not null" json:"following_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName maps Follow to the follows relation
func (Follow) TableName() string {
	return "follows"
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
