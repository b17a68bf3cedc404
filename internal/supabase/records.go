package supabase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"layerminder-backend/internal/models"
)

// RecordReader is the read-only view of generation records used by the
// progress stream server. It goes through PostgREST rather than the direct
// Postgres connection, so the stream server can run in a separate process
// from the orchestrator and still observe the same persisted state.
type RecordReader struct {
	client *Client
}

func NewRecordReader(client *Client) *RecordReader {
	return &RecordReader{client: client}
}

type recordRow struct {
	RecordID             uuid.UUID `json:"record_id"`
	SessionID            uuid.UUID `json:"session_id"`
	UserID               uuid.UUID `json:"user_id"`
	ImageStatus          string    `json:"image_status"`
	StoryStatus          string    `json:"story_status"`
	KeywordsStatus       string    `json:"keywords_status"`
	RecommendationStatus string    `json:"recommendation_status"`
	Story                *string   `json:"story"`
	Keywords             []string  `json:"keywords"`
	ReferenceImageID     *string   `json:"reference_image_id"`
	RecommendationError  *string   `json:"recommendation_error"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type recordImageRow struct {
	RecordID uuid.UUID `json:"record_id"`
	ImageID  uuid.UUID `json:"image_id"`
	Seq      int       `json:"seq"`
	Images   struct {
		URL       string    `json:"url"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"images"`
}

func (r *RecordReader) GetRecord(recordID uuid.UUID) (*models.GenerationRecord, error) {
	data, _, err := r.client.Supabase.From("history_records").
		Select("*", "", false).
		Eq("record_id", recordID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record: %w", err)
	}

	var rows []recordRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrRecordNotFound
	}

	return rows[0].toModel(), nil
}

func (r *RecordReader) ListRecordImages(recordID uuid.UUID) ([]models.RecordImage, error) {
	data, _, err := r.client.Supabase.From("history_record_images").
		Select("record_id,image_id,seq,images(url,created_at)", "", false).
		Eq("record_id", recordID.String()).
		Order("seq", nil).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record images: %w", err)
	}

	var rows []recordImageRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode record images: %w", err)
	}

	images := make([]models.RecordImage, 0, len(rows))
	for _, row := range rows {
		images = append(images, models.RecordImage{
			RecordID:  row.RecordID,
			ImageID:   row.ImageID,
			Seq:       row.Seq,
			URL:       row.Images.URL,
			CreatedAt: row.Images.CreatedAt,
		})
	}

	return images, nil
}

func (row *recordRow) toModel() *models.GenerationRecord {
	record := &models.GenerationRecord{
		RecordID:             row.RecordID,
		SessionID:            row.SessionID,
		UserID:               row.UserID,
		ImageStatus:          row.ImageStatus,
		StoryStatus:          row.StoryStatus,
		KeywordsStatus:       row.KeywordsStatus,
		RecommendationStatus: row.RecommendationStatus,
		Keywords:             row.Keywords,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	if row.Story != nil {
		record.Story.String = *row.Story
		record.Story.Valid = true
	}
	if row.ReferenceImageID != nil {
		record.ReferenceImageID.String = *row.ReferenceImageID
		record.ReferenceImageID.Valid = true
	}
	if row.RecommendationError != nil {
		record.RecommendationError.String = *row.RecommendationError
		record.RecommendationError.Valid = true
	}
	return record
}
