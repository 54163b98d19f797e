package model

import "time"

// Status is the AI processing status of an image's metadata record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Image represents a stored image record owned by a single user.
// Ownership is fixed at creation and never changes.
type Image struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Filename      string    `json:"filename"`
	OriginalPath  string    `json:"original_path"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Metadata holds the AI-derived metadata for an image. Exactly one
// metadata record exists per image.
type Metadata struct {
	ID          int64     `json:"id"`
	ImageID     int64     `json:"image_id"`
	UserID      string    `json:"user_id"`
	Status      Status    `json:"ai_processing_status"`
	Description *string   `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Colors      []string  `json:"colors,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MetadataUpdate is a partial update of a metadata record. Nil fields
// leave the stored values unchanged; Status is always written.
type MetadataUpdate struct {
	Description *string
	Tags        []string
	Colors      []string
	Status      Status
}

// Analysis is the structured result of a vision model call.
type Analysis struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
