package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AppStorage persists one opaque blob under a namespace. It backs the
// in-process todo application so its list survives across processes.
type AppStorage struct {
	db        *sql.DB
	namespace string
}

// AppStorage returns the blob storage for namespace.
func (s *Store) AppStorage(namespace string) *AppStorage {
	return &AppStorage{db: s.db, namespace: namespace}
}

// Load returns the stored blob, or nil when nothing is stored.
func (a *AppStorage) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx, `SELECT data FROM app_storage WHERE namespace = ?`, a.namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.namespace, err)
	}
	return data, nil
}

// Save replaces the stored blob.
func (a *AppStorage) Save(ctx context.Context, data []byte) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO app_storage (namespace, data) VALUES (?, ?)
		ON CONFLICT(namespace) DO UPDATE SET data = excluded.data
	`, a.namespace, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", a.namespace, err)
	}
	return nil
}

// Clear removes the stored blob.
func (a *AppStorage) Clear(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM app_storage WHERE namespace = ?`, a.namespace); err != nil {
		return fmt.Errorf("clear %s: %w", a.namespace, err)
	}
	return nil
}
