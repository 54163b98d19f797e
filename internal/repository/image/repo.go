package image

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/ai-image-analyzer/internal/model"
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrMetadataNotFound = errors.New("image metadata not found")
)

// Repository provides access to image records and their AI metadata.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// CreateImage inserts a new image record owned by userID and returns it.
func (r *Repository) CreateImage(ctx context.Context, userID, filename, originalPath string) (model.Image, error) {
	query := `
		INSERT INTO images (user_id, filename, original_path)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
   `

	img := model.Image{
		UserID:       userID,
		Filename:     filename,
		OriginalPath: originalPath,
	}

	err := r.db.QueryRowContext(ctx, query, userID, filename, originalPath).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return model.Image{}, fmt.Errorf("create: failed to create image: %w", err)
	}

	return img, nil
}

// CreateInitialMetadata inserts the metadata record paired with an
// image, starting in the pending status.
func (r *Repository) CreateInitialMetadata(ctx context.Context, imageID int64, userID string) (model.Metadata, error) {
	query := `
		INSERT INTO image_metadata (image_id, user_id, ai_processing_status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
   `

	meta := model.Metadata{
		ImageID: imageID,
		UserID:  userID,
		Status:  model.StatusPending,
	}

	err := r.db.QueryRowContext(ctx, query, imageID, userID, string(model.StatusPending)).
		Scan(&meta.ID, &meta.CreatedAt, &meta.UpdatedAt)
	if err != nil {
		return model.Metadata{}, fmt.Errorf("create: failed to create metadata: %w", err)
	}

	return meta, nil
}

// GetMetadata retrieves the metadata record for an image owned by userID.
func (r *Repository) GetMetadata(ctx context.Context, imageID int64, userID string) (model.Metadata, error) {
	query := `
		SELECT id, ai_processing_status, description, tags, colors, created_at, updated_at
		FROM image_metadata
		WHERE image_id = $1 AND user_id = $2
    `

	meta := model.Metadata{
		ImageID: imageID,
		UserID:  userID,
	}

	var (
		description sql.NullString
		tagsJSON    []byte
		colorsJSON  []byte
	)

	err := r.db.QueryRowContext(ctx, query, imageID, userID).
		Scan(&meta.ID, &meta.Status, &description, &tagsJSON, &colorsJSON, &meta.CreatedAt, &meta.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Metadata{}, ErrMetadataNotFound
		}

		return model.Metadata{}, fmt.Errorf("get: failed to get metadata: %w", err)
	}

	if description.Valid {
		meta.Description = &description.String
	}
	if tagsJSON != nil {
		if err := json.Unmarshal(tagsJSON, &meta.Tags); err != nil {
			return model.Metadata{}, fmt.Errorf("get: failed to unmarshal tags: %w", err)
		}
	}
	if colorsJSON != nil {
		if err := json.Unmarshal(colorsJSON, &meta.Colors); err != nil {
			return model.Metadata{}, fmt.Errorf("get: failed to unmarshal colors: %w", err)
		}
	}

	return meta, nil
}

// UpsertMetadata writes a partial metadata update. Nil description,
// tags or colors leave the stored values untouched; the status is
// always overwritten.
func (r *Repository) UpsertMetadata(ctx context.Context, imageID int64, userID string, upd model.MetadataUpdate) error {
	query := `
		INSERT INTO image_metadata (image_id, user_id, description, tags, colors, ai_processing_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (image_id) DO UPDATE SET
			description          = COALESCE(EXCLUDED.description, image_metadata.description),
			tags                 = COALESCE(EXCLUDED.tags, image_metadata.tags),
			colors               = COALESCE(EXCLUDED.colors, image_metadata.colors),
			ai_processing_status = EXCLUDED.ai_processing_status,
			updated_at           = now()
    `

	tagsJSON, err := marshalNullable(upd.Tags)
	if err != nil {
		return fmt.Errorf("upsert: failed to marshal tags: %w", err)
	}
	colorsJSON, err := marshalNullable(upd.Colors)
	if err != nil {
		return fmt.Errorf("upsert: failed to marshal colors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, imageID, userID, upd.Description, tagsJSON, colorsJSON, string(upd.Status))
	if err != nil {
		return fmt.Errorf("upsert: failed to upsert metadata: %w", err)
	}

	return nil
}

// UpdateThumbnailPath stores the generated thumbnail path on the image record.
func (r *Repository) UpdateThumbnailPath(ctx context.Context, imageID int64, path string) error {
	query := `
		UPDATE images
		SET thumbnail_path = $1
		WHERE id = $2
    `

	res, err := r.db.ExecContext(ctx, query, path, imageID)
	if err != nil {
		return fmt.Errorf("update: failed to update thumbnail path: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrImageNotFound
	}

	return nil
}

// VerifyOwnership reports whether the image exists and belongs to userID.
func (r *Repository) VerifyOwnership(ctx context.Context, imageID int64, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM images WHERE id = $1 AND user_id = $2
		)
    `

	var owned bool
	if err := r.db.QueryRowContext(ctx, query, imageID, userID).Scan(&owned); err != nil {
		return false, fmt.Errorf("verify: failed to check ownership: %w", err)
	}

	return owned, nil
}

// marshalNullable converts a string slice to JSON for a jsonb column,
// mapping a nil slice to SQL NULL so the upsert leaves the column alone.
func marshalNullable(values []string) (interface{}, error) {
	if values == nil {
		return nil, nil
	}

	return json.Marshal(values)
}
