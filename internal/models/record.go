package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Stage status values. Each stage moves pending -> processing -> ready|failed
// and never regresses within one pipeline run.
const (
	ImageStatusPending    = "pending"
	ImageStatusProcessing = "images_processing"
	ImageStatusReady      = "images_ready"
	ImageStatusError      = "error_images"

	StoryStatusPending    = "pending"
	StoryStatusProcessing = "processing"
	StoryStatusReady      = "ready"
	StoryStatusError      = "error"

	RecommendationStatusPending    = "pending"
	RecommendationStatusProcessing = "processing"
	RecommendationStatusReady      = "ready"
	RecommendationStatusFailed     = "failed"
)

// GenerationRecord is one end-to-end generation request. The pipeline
// orchestrator owns all status transitions; everything else only reads.
type GenerationRecord struct {
	RecordID             uuid.UUID
	SessionID            uuid.UUID
	UserID               uuid.UUID
	ImageStatus          string
	StoryStatus          string
	KeywordsStatus       string
	RecommendationStatus string
	Story                sql.NullString
	Keywords             pq.StringArray
	ReferenceImageID     sql.NullString
	RecommendationError  sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RecordImage is one synthesized output of a record, joined with the image
// row that holds its durable URL. Seq starts at 1 and is unique per record.
type RecordImage struct {
	RecordID  uuid.UUID `json:"record_id"`
	ImageID   uuid.UUID `json:"image_id"`
	Seq       int       `json:"seq"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type Image struct {
	ImageID   uuid.UUID
	UserID    uuid.UUID
	URL       string
	CreatedAt time.Time
}

type Session struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
