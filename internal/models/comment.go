package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment represents a comment on a post. Comments have no update or
// delete path.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"not null" json:"content"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time `json:"created_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
