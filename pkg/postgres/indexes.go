package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrIndexNotFound is returned when no stored index has the requested name.
var ErrIndexNotFound = errors.New("index not found")

const schema = `
CREATE TABLE IF NOT EXISTS doc_indexes (
	name        TEXT PRIMARY KEY,
	blob        BYTEA NOT NULL,
	checksum    BIGINT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// StoredIndex is one encoded index row.
type StoredIndex struct {
	Name      string
	Blob      []byte
	Checksum  int64
	UpdatedAt time.Time
}

// EnsureSchema creates the index table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating doc_indexes table: %w", err)
	}
	return nil
}

// GetIndex loads the named index.
func (c *Client) GetIndex(ctx context.Context, name string) (*StoredIndex, error) {
	row := c.DB.QueryRowContext(ctx,
		`SELECT name, blob, checksum, updated_at FROM doc_indexes WHERE name = $1`, name)
	var si StoredIndex
	if err := row.Scan(&si.Name, &si.Blob, &si.Checksum, &si.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
		}
		return nil, fmt.Errorf("querying index %s: %w", name, err)
	}
	return &si, nil
}

// IndexVersion returns the checksum and update time of the named index
// without transferring the blob.
func (c *Client) IndexVersion(ctx context.Context, name string) (int64, time.Time, error) {
	var (
		checksum  int64
		updatedAt time.Time
	)
	err := c.DB.QueryRowContext(ctx,
		`SELECT checksum, updated_at FROM doc_indexes WHERE name = $1`, name).Scan(&checksum, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("querying index version %s: %w", name, err)
	}
	return checksum, updatedAt, nil
}

// PutIndex inserts or replaces the named index.
func (c *Client) PutIndex(ctx context.Context, name string, blob []byte, checksum int64) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO doc_indexes (name, blob, checksum, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (name) DO UPDATE
			SET blob = EXCLUDED.blob, checksum = EXCLUDED.checksum, updated_at = now()`,
			name, blob, checksum)
		if err != nil {
			return fmt.Errorf("upserting index %s: %w", name, err)
		}
		return nil
	})
}
