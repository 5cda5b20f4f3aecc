// Package models contains the canonical domain types shared by the client
// SDK and the dev server. Every server response is normalized into these
// types at the gateway boundary; raw wire shapes never travel further inward.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Limits on a composed post. The video ceiling is in seconds.
const (
	MinContentLength = 10
	MaxContentLength = 500
	MaxImages        = 3
	MaxVideoSeconds  = 30
)

// Post represents a twit: a user-authored content unit with optional media.
// A post carries images or a single video, never both.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	ImageURLs     []string  `gorm:"serializer:json" json:"images"`
	VideoURL      string    `json:"video,omitempty"`
	VideoDuration float64   `json:"video_duration,omitempty"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	User          User      `gorm:"foreignKey:UserID" json:"user"`
	Likes         []User    `gorm:"many2many:post_likes" json:"likes"`
	Comments      []Comment `gorm:"foreignKey:PostID" json:"comments"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasMedia reports whether the post carries any media reference.
func (p *Post) HasMedia() bool {
	return len(p.ImageURLs) > 0 || p.VideoURL != ""
}

// LikedBy reports whether the given user is in the post's like list.
func (p *Post) LikedBy(userID uint) bool {
	for _, u := range p.Likes {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// ValidateMedia enforces the images-XOR-video invariant and the attachment caps.
func (p *Post) ValidateMedia() error {
	if len(p.ImageURLs) > 0 && p.VideoURL != "" {
		return NewValidationError("A post cannot carry both images and a video")
	}
	if len(p.ImageURLs) > MaxImages {
		return NewValidationError("A post cannot carry more than 3 images")
	}
	if p.VideoURL != "" && p.VideoDuration > MaxVideoSeconds {
		return NewValidationError("Video duration must not exceed 30 seconds")
	}
	return nil
}
