package models

type GenerateRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	// 1-2 storage file keys of the user's input images
	InputImageKeys []string `json:"input_image_keys" binding:"required,min=1,max=2"`
	// Optional style keyword mixed into the synthesis prompt (e.g. "modern")
	Keyword string `json:"keyword,omitempty" example:"modern"`
}

type PresignedUploadRequest struct {
	FileType string `json:"file_type" binding:"required" example:"image/png"`
}
