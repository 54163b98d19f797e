package image

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/ai-image-analyzer/internal/model"
	"github.com/aliskhannn/ai-image-analyzer/internal/processor"
)

// fileStorage defines the interface for storing uploaded originals.
type fileStorage interface {
	UploadOriginal(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// repository defines the persistence operations for registration and
// the synchronous ownership gate.
type repository interface {
	CreateImage(ctx context.Context, userID, filename, originalPath string) (model.Image, error)
	CreateInitialMetadata(ctx context.Context, imageID int64, userID string) (model.Metadata, error)
	VerifyOwnership(ctx context.Context, imageID int64, userID string) (bool, error)
}

// orchestrator runs the processing pipeline for one image.
type orchestrator interface {
	Process(ctx context.Context, imageID int64, userID, originalPath string) error
}

// Service provides business logic for image operations: it stores
// uploaded originals, registers image and metadata records, and
// dispatches background processing.
type Service struct {
	storage fileStorage
	repo    repository
	proc    orchestrator
}

// NewService creates a new Service with the given collaborators.
func NewService(fs fileStorage, r repository, p orchestrator) *Service {
	return &Service{storage: fs, repo: r, proc: p}
}

// Upload stores the file under a fresh per-user path, registers the
// image with pending metadata and dispatches background processing.
func (s *Service) Upload(ctx context.Context, userID, filename, contentType string, file io.Reader) (model.Image, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return model.Image{}, fmt.Errorf("upload: failed to read file: %w", err)
	}

	path := fmt.Sprintf("%s/original/%s%s", userID, uuid.New(), filepath.Ext(filename))

	if _, err := s.storage.UploadOriginal(ctx, path, data, contentType); err != nil {
		return model.Image{}, fmt.Errorf("upload: failed to save file: %w", err)
	}

	img, err := s.Register(ctx, userID, filename, path)
	if err != nil {
		return model.Image{}, err
	}

	s.dispatch(img.ID, userID, path)

	return img, nil
}

// Register creates the image record and its initial pending metadata.
func (s *Service) Register(ctx context.Context, userID, filename, originalPath string) (model.Image, error) {
	img, err := s.repo.CreateImage(ctx, userID, filename, originalPath)
	if err != nil {
		return model.Image{}, fmt.Errorf("register: failed to create image record: %w", err)
	}

	if _, err := s.repo.CreateInitialMetadata(ctx, img.ID, userID); err != nil {
		return model.Image{}, fmt.Errorf("register: failed to create initial metadata: %w", err)
	}

	return img, nil
}

// EnqueueProcessing checks ownership synchronously so the caller can be
// rejected before any work is scheduled, then dispatches the pipeline.
func (s *Service) EnqueueProcessing(ctx context.Context, imageID int64, userID, originalPath string) error {
	owned, err := s.repo.VerifyOwnership(ctx, imageID, userID)
	if err != nil {
		return fmt.Errorf("enqueue: failed to verify ownership: %w", err)
	}
	if !owned {
		return fmt.Errorf("image %d: %w", imageID, processor.ErrNotOwner)
	}

	s.dispatch(imageID, userID, originalPath)

	return nil
}

// dispatch runs one fire-and-forget unit of background work. The
// context is detached from the request so the pipeline outlives the
// response; its outcome is only observable through the metadata status.
func (s *Service) dispatch(imageID int64, userID, originalPath string) {
	go func() {
		if err := s.proc.Process(context.Background(), imageID, userID, originalPath); err != nil {
			zlog.Logger.Err(err).Int64("image_id", imageID).Msg("background processing failed")
		}
	}()
}
