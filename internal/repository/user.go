package repository

import (
	"context"

	"user-registry/internal/domain"
	"user-registry/internal/repository/query"
)

// ConflictQuery names the candidate values a uniqueness check looks for.
// Nil fields are not checked. ExcludeID, when set, ignores that user's own row.
type ConflictQuery struct {
	Username  *string
	Email     *string
	ExcludeID *int64
}

// UserReader exposes read access to users.
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	// FindConflict reports whether another user holds any of the candidate values.
	FindConflict(ctx context.Context, q ConflictQuery) (bool, error)
}

// UserTx is a transaction-scoped view of the user store.
type UserTx interface {
	UserReader
	Insert(ctx context.Context, username, email string) (*domain.User, error)
	Update(ctx context.Context, id int64, changes domain.UserChanges) (*domain.User, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	UserReader
	Init(ctx context.Context) error
	List(ctx context.Context, p query.ListParams) ([]domain.User, int64, error)
	// InTx runs fn inside one transaction, committing only when fn returns nil.
	InTx(ctx context.Context, fn func(tx UserTx) error) error
	// Version probes the store and returns its server version string.
	Version(ctx context.Context) (string, error)
}
