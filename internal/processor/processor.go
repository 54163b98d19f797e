// Package processor implements the image processing pipeline: once an
// upload is accepted, it downloads the original, derives a thumbnail,
// extracts dominant colors, runs AI analysis and persists the results,
// driving the metadata status machine pending -> processing ->
// completed/failed.
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/ai-image-analyzer/internal/codec"
	"github.com/aliskhannn/ai-image-analyzer/internal/model"
	imagerepo "github.com/aliskhannn/ai-image-analyzer/internal/repository/image"
)

// ErrNotOwner is returned when the asserted user does not own the image.
var ErrNotOwner = errors.New("image does not belong to user")

// metadataRepo defines the persistence operations the pipeline needs.
type metadataRepo interface {
	VerifyOwnership(ctx context.Context, imageID int64, userID string) (bool, error)
	GetMetadata(ctx context.Context, imageID int64, userID string) (model.Metadata, error)
	UpsertMetadata(ctx context.Context, imageID int64, userID string, upd model.MetadataUpdate) error
	UpdateThumbnailPath(ctx context.Context, imageID int64, path string) error
}

// fileStorage defines the object storage operations the pipeline needs.
type fileStorage interface {
	DownloadOriginal(ctx context.Context, path string) ([]byte, error)
	UploadThumbnail(ctx context.Context, path string, data []byte) (string, error)
}

// analyzer produces a description and tags for raw image bytes.
type analyzer interface {
	Analyze(ctx context.Context, data []byte) (model.Analysis, error)
}

// Config holds the pipeline parameters, fixed at startup.
type Config struct {
	ThumbnailSize int // square thumbnail edge length in pixels
	MaxTags       int // persisted tags are truncated to this count
	TopColors     int // number of dominant colors extracted
}

// Processor orchestrates the image processing pipeline.
type Processor struct {
	repo     metadataRepo
	storage  fileStorage
	analyzer analyzer
	cfg      Config
}

// New creates a Processor with the given collaborators.
func New(repo metadataRepo, fs fileStorage, a analyzer, cfg Config) *Processor {
	return &Processor{
		repo:     repo,
		storage:  fs,
		analyzer: a,
		cfg:      cfg,
	}
}

// Process runs the full pipeline for one image on behalf of userID.
//
// Guards: the image must belong to userID (ErrNotOwner otherwise, no
// state change), and metadata already in the completed status is
// skipped with no writes. Any failure past the guards marks the status
// failed (best effort) and returns the original error; effects already
// committed, such as an uploaded thumbnail, are not rolled back.
//
// Invocations are not mutually exclusive per image: two concurrent
// calls that both observe a non-completed status will both run and the
// last metadata write wins.
func (p *Processor) Process(ctx context.Context, imageID int64, userID, originalPath string) error {
	zlog.Logger.Info().
		Int64("image_id", imageID).
		Str("user_id", userID).
		Msg("starting image processing")

	owned, err := p.repo.VerifyOwnership(ctx, imageID, userID)
	if err != nil {
		return fmt.Errorf("verify ownership: %w", err)
	}
	if !owned {
		return fmt.Errorf("image %d: %w", imageID, ErrNotOwner)
	}

	meta, err := p.repo.GetMetadata(ctx, imageID, userID)
	if err != nil && !errors.Is(err, imagerepo.ErrMetadataNotFound) {
		return fmt.Errorf("get metadata: %w", err)
	}
	if err == nil && meta.Status == model.StatusCompleted {
		zlog.Logger.Info().Int64("image_id", imageID).Msg("image already processed, skipping")
		return nil
	}

	if err := p.run(ctx, imageID, userID, originalPath); err != nil {
		zlog.Logger.Err(err).Int64("image_id", imageID).Msg("image processing failed")
		p.markFailed(ctx, imageID, userID)
		return err
	}

	zlog.Logger.Info().Int64("image_id", imageID).Msg("successfully processed image")

	return nil
}

// run executes the pipeline steps in order. Each step's failure is
// fatal to the invocation.
func (p *Processor) run(ctx context.Context, imageID int64, userID, originalPath string) error {
	// Mark work as started; visible to concurrent readers immediately.
	upd := model.MetadataUpdate{Status: model.StatusProcessing}
	if err := p.repo.UpsertMetadata(ctx, imageID, userID, upd); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	zlog.Logger.Info().Str("path", originalPath).Msg("downloading original image")

	original, err := p.storage.DownloadOriginal(ctx, originalPath)
	if err != nil {
		return fmt.Errorf("download original: %w", err)
	}

	zlog.Logger.Info().Int("size", len(original)).Msg("image downloaded")

	thumb, err := codec.Thumbnail(original, p.cfg.ThumbnailSize)
	if err != nil {
		return fmt.Errorf("generate thumbnail: %w", err)
	}

	// Freshly generated path per invocation, so repeated runs never
	// collide in storage.
	thumbPath := fmt.Sprintf("%s/thumbnails/%s.jpg", userID, uuid.New())
	if _, err := p.storage.UploadThumbnail(ctx, thumbPath, thumb); err != nil {
		return fmt.Errorf("upload thumbnail: %w", err)
	}
	if err := p.repo.UpdateThumbnailPath(ctx, imageID, thumbPath); err != nil {
		return fmt.Errorf("save thumbnail path: %w", err)
	}

	zlog.Logger.Info().Str("path", thumbPath).Msg("thumbnail uploaded")

	colors, err := codec.DominantColors(original, p.cfg.TopColors)
	if err != nil {
		return fmt.Errorf("extract dominant colors: %w", err)
	}

	zlog.Logger.Info().Strs("colors", colors).Msg("extracted dominant colors")

	analysis, err := p.analyzer.Analyze(ctx, original)
	if err != nil {
		return fmt.Errorf("analyze image: %w", err)
	}

	tags := analysis.Tags
	if len(tags) > p.cfg.MaxTags {
		tags = tags[:p.cfg.MaxTags]
	}

	zlog.Logger.Info().
		Int("tags", len(tags)).
		Int("description_length", len(analysis.Description)).
		Msg("AI analysis complete")

	final := model.MetadataUpdate{
		Description: &analysis.Description,
		Tags:        tags,
		Colors:      colors,
		Status:      model.StatusCompleted,
	}
	if err := p.repo.UpsertMetadata(ctx, imageID, userID, final); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}

	return nil
}

// markFailed is a best-effort transition to the failed status. Its own
// failure is logged and swallowed so the pipeline's original error is
// the one reported.
func (p *Processor) markFailed(ctx context.Context, imageID int64, userID string) {
	upd := model.MetadataUpdate{Status: model.StatusFailed}
	if err := p.repo.UpsertMetadata(ctx, imageID, userID, upd); err != nil {
		zlog.Logger.Error().Err(err).Int64("image_id", imageID).Msg("failed to mark metadata as failed")
	}
}
