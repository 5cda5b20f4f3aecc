package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an author reference: the identity attached to posts,
// likes and comments.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"not null" json:"full_name"`
	Email     string    `gorm:"unique" json:"email,omitempty"`
	Password  string    `gorm:"not null" json:"-"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
