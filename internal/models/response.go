package models

import "time"

type GenerateResponse struct {
	RecordID    string `json:"record_id"`
	ImageStatus string `json:"image_status"`
}

type RecordResponse struct {
	RecordID             string                `json:"record_id"`
	SessionID            string                `json:"session_id"`
	ImageStatus          string                `json:"image_status"`
	StoryStatus          string                `json:"story_status"`
	KeywordsStatus       string                `json:"keywords_status"`
	RecommendationStatus string                `json:"recommendation_status"`
	Story                string                `json:"story,omitempty"`
	Keywords             []string              `json:"keywords,omitempty"`
	ReferenceImageID     string                `json:"reference_image_id,omitempty"`
	RecommendationError  string                `json:"recommendation_error,omitempty"`
	Images               []RecordImageResponse `json:"images,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

type RecordImageResponse struct {
	ImageID string `json:"image_id"`
	Seq     int    `json:"seq"`
	URL     string `json:"url"`
}

type RecordListResponse struct {
	Records []RecordResponse `json:"records"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type CreditBalanceResponse struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
}

type PresignedUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileKey   string `json:"file_key"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type InsufficientCreditsResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	CurrentCredits  int    `json:"current_credits"`
	RequiredCredits int    `json:"required_credits"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
