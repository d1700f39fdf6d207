// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in subpackages.
package repository

import (
	"context"

	"github.com/sakif/coderunner/internal/model"
)

// ListOptions paginates list queries. Zero values pick the defaults.
type ListOptions struct {
	Limit  int
	Offset int
}

// ExecutionRepository stores execution history.
type ExecutionRepository interface {
	Create(ctx context.Context, e *model.Execution) error
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	List(ctx context.Context, opts ListOptions) ([]model.Execution, error)
	// Prune deletes the oldest rows beyond keep and returns how many went.
	Prune(ctx context.Context, keep int) (int64, error)
}
