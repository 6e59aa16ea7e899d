package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Upload tracks where a stored thumbnail file is referenced from.
type Upload struct {
	FileID    string    `json:"file_id"`
	Kind      string    `json:"kind"`
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrUploadNotFound = errors.New("upload not found")

// UploadRepository provides persistence for upload provenance records.
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new upload repository.
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Record stores the provenance row for a thumbnail file. Recording the
// same file twice keeps the first row.
func (r *UploadRepository) Record(ctx context.Context, fileID, kind, ref string) error {
	if fileID == "" {
		return fmt.Errorf("file id required")
	}

	const q = `
INSERT INTO uploads (file_id, kind, ref)
VALUES ($1, $2, $3)
ON CONFLICT (file_id) DO NOTHING;
`
	if _, err := r.db.ExecContext(ctx, q, fileID, kind, ref); err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

// Get fetches one provenance row.
func (r *UploadRepository) Get(ctx context.Context, fileID string) (*Upload, error) {
	const q = `
SELECT file_id, kind, ref, created_at
FROM uploads
WHERE file_id = $1;
`
	var u Upload
	err := r.db.QueryRowContext(ctx, q, fileID).Scan(&u.FileID, &u.Kind, &u.Ref, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	return &u, nil
}
