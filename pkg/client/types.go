package client

import (
	"time"

	"github.com/tasksync/tasksync/pkg/models"
)

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session credential returned by a successful
// login. The same token authenticates REST calls and the realtime handshake.
type LoginResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// CreateTaskRequest is the payload for POST /api/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is the payload for PUT /api/tasks/{id}. ID must match the
// path; CreatedAt is immutable and not part of the payload.
type UpdateTaskRequest struct {
	ID          models.TaskID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	IsComplete  bool          `json:"isComplete"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
}
