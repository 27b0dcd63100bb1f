// Package repository holds Postgres-backed persistence for the metadata
// keyspace (§6 "Metadata keyspace ... primary key image_hash → JSON
// record") and the per-kind cache version counters. Adapted from the
// teacher's cmd/orchestrator/repository/cas_blob.go (hash-keyed content
// table with ON CONFLICT DO NOTHING dedup) — generalized from inline CAS
// blob storage to ImageRecord metadata rows, with pixel bytes moved out to
// the Blob Store Adapter (C2) instead of living in the metadata row.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/parkvision/visionserve/common/db"
	"github.com/parkvision/visionserve/common/models"
)

// ImageRepository handles database operations for ImageRecord metadata.
type ImageRepository struct {
	db *db.DB
}

// NewImageRepository creates a new image repository.
func NewImageRepository(database *db.DB) *ImageRepository {
	return &ImageRepository{db: database}
}

// Create inserts a new ImageRecord, returning (false, nil) without error if
// image_hash already exists — dedup collapse per §3 E:ImageRecord's
// uniqueness invariant is enforced here, not by the caller re-checking.
func (r *ImageRepository) Create(ctx context.Context, rec *models.ImageRecord) (created bool, err error) {
	query := `
		INSERT INTO image_record (image_hash, perceptual_hash, filename, size_bytes, mime_type, blob_url, width, height, upload_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (image_hash) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		rec.ImageHash, rec.PerceptualHash, rec.Filename, rec.SizeBytes,
		rec.MimeType, rec.BlobURL, rec.Width, rec.Height, rec.UploadTime,
	)
	if err != nil {
		return false, fmt.Errorf("create image record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByHash retrieves an ImageRecord by its exact image_hash.
func (r *ImageRepository) GetByHash(ctx context.Context, imageHash string) (*models.ImageRecord, error) {
	query := `
		SELECT image_hash, perceptual_hash, filename, size_bytes, mime_type, blob_url, width, height, upload_time
		FROM image_record WHERE image_hash = $1
	`
	rec := &models.ImageRecord{}
	err := r.db.QueryRow(ctx, query, imageHash).Scan(
		&rec.ImageHash, &rec.PerceptualHash, &rec.Filename, &rec.SizeBytes,
		&rec.MimeType, &rec.BlobURL, &rec.Width, &rec.Height, &rec.UploadTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image record: %w", err)
	}
	return rec, nil
}

// AllPerceptualHashes returns every record's image_hash → perceptual_hash.
// The Hamming distance itself is computed in Go (C1's
// FindSimilar) rather than in SQL — Postgres has no builtin popcount over
// hex text, and the candidate set (all rows) is small enough for an
// in-process scan at this service's scale.
func (r *ImageRepository) AllPerceptualHashes(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT image_hash, perceptual_hash FROM image_record`)
	if err != nil {
		return nil, fmt.Errorf("list perceptual hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var hash, phash string
		if err := rows.Scan(&hash, &phash); err != nil {
			return nil, fmt.Errorf("scan perceptual hash: %w", err)
		}
		out[hash] = phash
	}
	return out, rows.Err()
}

// List returns one page of ImageRecords ordered by most-recent upload,
// implementing the supplemented offset/limit cursor semantics.
func (r *ImageRepository) List(ctx context.Context, filter models.ListImagesFilter) ([]models.ImageRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := DecodeCursor(filter.Cursor)

	var rows pgx.Rows
	var err error
	if filter.MimeType != "" {
		rows, err = r.db.Query(ctx, `
			SELECT image_hash, perceptual_hash, filename, size_bytes, mime_type, blob_url, width, height, upload_time
			FROM image_record WHERE mime_type = $1 ORDER BY upload_time DESC LIMIT $2 OFFSET $3
		`, filter.MimeType, limit, offset)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT image_hash, perceptual_hash, filename, size_bytes, mime_type, blob_url, width, height, upload_time
			FROM image_record ORDER BY upload_time DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list image records: %w", err)
	}
	defer rows.Close()

	var out []models.ImageRecord
	for rows.Next() {
		var rec models.ImageRecord
		if err := rows.Scan(
			&rec.ImageHash, &rec.PerceptualHash, &rec.Filename, &rec.SizeBytes,
			&rec.MimeType, &rec.BlobURL, &rec.Width, &rec.Height, &rec.UploadTime,
		); err != nil {
			return nil, fmt.Errorf("scan image record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes the metadata row for image_hash.
func (r *ImageRepository) Delete(ctx context.Context, imageHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM image_record WHERE image_hash = $1`, imageHash)
	if err != nil {
		return fmt.Errorf("delete image record: %w", err)
	}
	return nil
}
