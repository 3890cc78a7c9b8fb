// Package store defines the persistence contract for tasks and user accounts.
//
// Implementations live in subpackages: postgres (GORM-backed, the production
// store) and memory (mutex-guarded maps, used by tests and the server's dev
// mode). Get operations return (nil, nil) when the record does not exist so
// callers can distinguish "not found" from transport failures.
package store

import (
	"context"

	"github.com/tasksync/tasksync/pkg/models"
)

// Store is the durable record of tasks and users. Concurrent updates to the
// same task resolve last-write-wins; implementations must be safe for
// concurrent use.
type Store interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id models.TaskID) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id models.TaskID) error
	// ListTasks returns every task ordered by creation time.
	ListTasks(ctx context.Context) ([]*models.Task, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	Migrate(ctx context.Context) error
	Close() error
}
