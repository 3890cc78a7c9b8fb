// Package models defines the persistent entities of the task tracker and the
// ephemeral change notification pushed to realtime clients.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Task is a single tracked task. ID and CreatedAt are server-assigned at
// creation and never mutated afterwards; the remaining fields change through
// the mutation API only.
type Task struct {
	ID          TaskID     `gorm:"type:uuid;primary_key" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	IsComplete  bool       `gorm:"not null" json:"isComplete"`
	CreatedAt   time.Time  `json:"createdAt"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsZero() {
		t.ID = NewTaskID()
	}
	return nil
}

// User is an account that can authenticate and mutate tasks.
// PasswordHash never leaves the server.
type User struct {
	ID           UserID    `gorm:"type:uuid;primary_key" json:"id"`
	Email        string    `gorm:"unique;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BeforeCreate hook to generate ID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsZero() {
		u.ID = NewUserID()
	}
	return nil
}
