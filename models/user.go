package models

import "time"

// Role decides what a user may do beyond owning their own content.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a member. Email is the primary key; passwords are stored as bcrypt hashes only.
type User struct {
	Email        string    `gorm:"primaryKey;size:255" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Nickname     string    `gorm:"size:64;not null" json:"nickname"`
	Role         Role      `gorm:"size:16;not null;default:'user'" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName pins the table name regardless of naming strategy.
func (User) TableName() string { return "users" }
