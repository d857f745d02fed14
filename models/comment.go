package models

import "time"

// Comment is a reply on a post. Its identity is (PostID, CreatedNanos, AuthorTag),
// which is also the chronological sort order within the post.
type Comment struct {
	PostID       string    `gorm:"primaryKey;size:64" json:"post_id"`
	CreatedNanos int64     `gorm:"primaryKey;autoIncrement:false" json:"-"`
	AuthorTag    string    `gorm:"primaryKey;size:32" json:"-"`
	CommentID    string    `gorm:"-" json:"comment_id"`
	UserID       string    `gorm:"size:255;not null" json:"user_id"`
	Nickname     string    `gorm:"size:64;not null" json:"nickname"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false;not null" json:"created_at"`
}

// TableName pins the table name regardless of naming strategy.
func (Comment) TableName() string { return "comments" }
