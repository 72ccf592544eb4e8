package models

import (
	"strings"
	"time"
)

// User types recognized by the app
const (
	UserTypeStudent = "student"
	UserTypeFaculty = "faculty"
)

// Profile is the public identity row for a user. The core only ever reads
// profiles; writes happen through the auth/onboarding flows outside this repo.
type Profile struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `gorm:"index" json:"username"`
	StudentID   string `json:"student_id"`
	SchoolEmail string `json:"school_email"`
	AvatarURL   string `json:"avatar_url"`
	UserType    string `gorm:"default:'student'" json:"user_type"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName maps Profile to the profiles relation
func (Profile) TableName() string {
	return "profiles"
}

// BestDisplayName resolves the display name fallback chain:
// display name, then username, then the local part of the school email.
func (p *Profile) BestDisplayName() string {
	if p == nil {
		return "User"
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Username != "" {
		return p.Username
	}
	if p.SchoolEmail != "" {
		if at := strings.IndexByte(p.SchoolEmail, '@'); at > 0 {
			return p.SchoolEmail[:at]
		}
	}
	return "User"
}

// Initials derives a 2-character handle for avatar placeholders.
func (p *Profile) Initials() string {
	if p == nil {
		return "US"
	}
	if p.DisplayName != "" {
		parts := strings.Fields(strings.TrimSpace(p.DisplayName))
		if len(parts) == 1 {
			return strings.ToUpper(firstN(parts[0], 2))
		}
		if len(parts) > 1 {
			return strings.ToUpper(firstN(parts[0], 1) + firstN(parts[1], 1))
		}
	}
	if p.Username != "" {
		return strings.ToUpper(firstN(p.Username, 2))
	}
	if p.StudentID != "" {
		return strings.ToUpper(firstN(p.StudentID, 2))
	}
	return "US"
}

func firstN(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
