package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Post represents a board post. UserID is the owner's email and never changes after creation.
type Post struct {
	ID           string     `gorm:"column:post_id;primaryKey;size:64" json:"post_id"`
	UserID       string     `gorm:"index;size:255;not null" json:"user_id"`
	Category     Category   `gorm:"column:post_type;size:32;not null;index:idx_posts_category_created,priority:1" json:"post_type"`
	Title        string     `gorm:"size:400;not null" json:"title"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	FileURLs     StringList `gorm:"column:file_urls;type:text" json:"file_urls"`
	ViewCount    int64      `gorm:"not null;default:0" json:"view_count"`
	CommentCount int64      `gorm:"column:feedback_count;not null;default:0" json:"feedback_count"`
	CreatedAt    time.Time  `gorm:"autoCreateTime:false;not null;index:idx_posts_category_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime:false;not null" json:"updated_at"`
}

// TableName pins the table name regardless of naming strategy.
func (Post) TableName() string { return "posts" }

// StringList stores an ordered list of strings as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("unsupported type for StringList")
	}
	if len(raw) == 0 {
		*s = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*s = out
	return nil
}

// MarshalJSON always renders an array, never null.
func (s StringList) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}
