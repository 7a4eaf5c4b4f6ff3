package globals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore is a persistent store backed by the global_vars table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves a value by name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM global_vars WHERE name = ?
	`, name).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get global %s: %w", name, err)
	}

	return value, nil
}

// Set overwrites the value of an existing variable.
func (s *SQLiteStore) Set(ctx context.Context, name, value string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE global_vars SET value = ?, updated_at = ? WHERE name = ?
	`, value, time.Now().UTC().Unix(), name)
	if err != nil {
		return fmt.Errorf("failed to set global %s: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set global %s: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUndeclared, name)
	}

	return nil
}

// Declare inserts the variable unless it already exists.
func (s *SQLiteStore) Declare(ctx context.Context, name, value string) (bool, error) {
	now := time.Now().UTC().Unix()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO global_vars (name, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, value, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to declare global %s: %w", name, err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Exists returns true if the variable is declared.
func (s *SQLiteStore) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM global_vars WHERE name = ?
	`, name).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check global %s: %w", name, err)
	}

	return true, nil
}

// Delete removes a variable.
func (s *SQLiteStore) Delete(ctx context.Context, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM global_vars WHERE name = ?
	`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete global %s: %w", name, err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// List returns all variables ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Variable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, created_at, updated_at FROM global_vars ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list globals: %w", err)
	}
	defer rows.Close()

	var vars []Variable
	for rows.Next() {
		var v Variable
		var created, updated int64
		if err := rows.Scan(&v.Name, &v.Value, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan global: %w", err)
		}
		v.CreatedAt = time.Unix(created, 0).UTC()
		v.UpdatedAt = time.Unix(updated, 0).UTC()
		vars = append(vars, v)
	}

	return vars, rows.Err()
}
