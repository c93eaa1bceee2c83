package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectUpdate carries the optional fields of an update_project call.
// Nil fields are left unchanged.
type ProjectUpdate struct {
	ID          uuid.UUID
	Title       *string
	Description *string
}

type ProjectRepository interface {
	Add(ctx context.Context, path, title string) (*Project, error)
	Get(ctx context.Context, id uuid.UUID) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, update ProjectUpdate) (*Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
