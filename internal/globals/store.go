// Package globals provides the named global variables scenes share, with
// SQLite persistence and an in-memory option.
package globals

import (
	"context"
	"errors"
	"time"
)

// ErrUndeclared is returned when reading or writing a variable that was never declared.
var ErrUndeclared = errors.New("global variable not declared")

// Variable represents a stored global with metadata.
type Variable struct {
	Name      string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the interface for global variable operations.
type Store interface {
	// Get returns the value of a declared variable.
	// Returns ErrUndeclared if the variable doesn't exist.
	Get(ctx context.Context, name string) (string, error)

	// Set overwrites the value of a declared variable.
	// Returns ErrUndeclared if the variable doesn't exist.
	Set(ctx context.Context, name, value string) error

	// Declare creates the variable with an initial value if it doesn't exist.
	// Returns true if the variable was created.
	Declare(ctx context.Context, name, value string) (bool, error)

	// Exists returns true if the variable is declared.
	Exists(ctx context.Context, name string) (bool, error)

	// Delete removes a variable.
	// Returns true if the variable existed.
	Delete(ctx context.Context, name string) (bool, error)

	// List returns all variables ordered by name.
	List(ctx context.Context) ([]Variable, error)
}
