package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/ai-image-analyzer/internal/api/respond"
	"github.com/aliskhannn/ai-image-analyzer/internal/middleware"
	"github.com/aliskhannn/ai-image-analyzer/internal/model"
	"github.com/aliskhannn/ai-image-analyzer/internal/processor"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing.
const maxUploadMemory = 10 << 20 // 10MB

// service defines the interface for image-related operations.
type service interface {
	Upload(ctx context.Context, userID, filename, contentType string, file io.Reader) (model.Image, error)
	Register(ctx context.Context, userID, filename, originalPath string) (model.Image, error)
	EnqueueProcessing(ctx context.Context, imageID int64, userID, originalPath string) error
}

// Handler provides HTTP handlers for image-related endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// ProcessRequest asks for background processing of a registered image.
type ProcessRequest struct {
	ImageID      int64  `json:"image_id"`
	OriginalPath string `json:"original_path"`
	Filename     string `json:"filename"`
}

// RegisterRequest registers an already-uploaded image.
type RegisterRequest struct {
	Filename     string `json:"filename"`
	OriginalPath string `json:"original_path"`
}

// Process accepts a processing request, checks ownership synchronously
// and schedules the pipeline as background work. The response returns
// before processing completes; callers observe the outcome through the
// metadata status.
func (h *Handler) Process(c *ginext.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("missing identity"))
		return
	}

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	if req.ImageID <= 0 || req.OriginalPath == "" || req.Filename == "" {
		respond.Fail(c, http.StatusBadRequest, errors.New("image_id, original_path and filename are required"))
		return
	}

	zlog.Logger.Info().
		Int64("image_id", req.ImageID).
		Str("user_id", userID).
		Msg("enqueuing image processing")

	if err := h.service.EnqueueProcessing(c.Request.Context(), req.ImageID, userID, req.OriginalPath); err != nil {
		if errors.Is(err, processor.ErrNotOwner) {
			respond.Fail(c, http.StatusForbidden, errors.New("you do not have permission to process this image"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to enqueue processing")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to enqueue processing: %v", err))
		return
	}

	respond.Accepted(c, map[string]interface{}{
		"status":   "queued",
		"image_id": req.ImageID,
	})
}

// Register creates an image record and its initial metadata for a file
// that already exists in storage.
func (h *Handler) Register(c *ginext.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("missing identity"))
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	if req.Filename == "" || req.OriginalPath == "" {
		respond.Fail(c, http.StatusBadRequest, errors.New("filename and original_path are required"))
		return
	}

	img, err := h.service.Register(c.Request.Context(), userID, req.Filename, req.OriginalPath)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to register image")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to register image: %v", err))
		return
	}

	respond.Created(c, map[string]interface{}{
		"image_id": img.ID,
		"status":   "registered",
	})
}

// Upload stores an uploaded file, registers it and schedules background
// processing in one request.
func (h *Handler) Upload(c *ginext.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("missing identity"))
		return
	}

	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to retrieve uploaded file")
		respond.Fail(c, http.StatusBadRequest, errors.New("failed to retrieve the file"))
		return
	}
	defer file.Close()

	if header.Size == 0 {
		respond.Fail(c, http.StatusBadRequest, errors.New("uploaded file is empty"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respond.Fail(c, http.StatusBadRequest, errors.New("uploaded file must be an image"))
		return
	}

	zlog.Logger.Info().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Str("user_id", userID).
		Msg("uploading image")

	img, err := h.service.Upload(c.Request.Context(), userID, header.Filename, contentType, file)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to upload the image")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to upload the image: %v", err))
		return
	}

	respond.Created(c, map[string]interface{}{
		"image_id":      img.ID,
		"original_path": img.OriginalPath,
		"status":        "uploaded",
	})
}

// Health reports service liveness.
func (h *Handler) Health(c *ginext.Context) {
	respond.OK(c, map[string]string{"status": "ok"})
}
