package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"layerminder-backend/internal/middleware"
	"layerminder-backend/internal/models"
	"layerminder-backend/internal/supabase"
)

type RecordsHandler struct {
	dbClient *supabase.DatabaseClient
}

func NewRecordsHandler(dbClient *supabase.DatabaseClient) *RecordsHandler {
	return &RecordsHandler{dbClient: dbClient}
}

// GetRecord godoc
// @Summary     Get one generation record
// @Description Returns a record's stage statuses, outputs and ordered images.
// @Tags        history
// @Produce     json
// @Security    Bearer
// @Param       record_id path string true "Record ID (UUID)"
// @Success     200 {object} models.RecordResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /records/{record_id} [get]
func (h *RecordsHandler) GetRecord(c *gin.Context) {
	if h.dbClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return
	}

	recordID, err := uuid.Parse(c.Param("record_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid record id"})
		return
	}

	record, err := h.dbClient.GetRecord(recordID)
	if err != nil || record.UserID != userID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "record not found"})
		return
	}

	images, err := h.dbClient.ListRecordImages(recordID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list record images",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, recordResponse(record, images))
}

// ListRecords godoc
// @Summary     List a session's generation records
// @Description Lists the session's records, newest first.
// @Tags        history
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID (UUID)"
// @Success     200 {object} models.RecordListResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/records [get]
func (h *RecordsHandler) ListRecords(c *gin.Context) {
	if h.dbClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid session id"})
		return
	}

	records, err := h.dbClient.ListRecordsBySession(sessionID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list records",
			Message: err.Error(),
		})
		return
	}

	response := models.RecordListResponse{Records: make([]models.RecordResponse, 0, len(records))}
	for i := range records {
		response.Records = append(response.Records, recordResponse(&records[i], nil))
	}

	c.JSON(http.StatusOK, response)
}

func recordResponse(record *models.GenerationRecord, images []models.RecordImage) models.RecordResponse {
	resp := models.RecordResponse{
		RecordID:             record.RecordID.String(),
		SessionID:            record.SessionID.String(),
		ImageStatus:          record.ImageStatus,
		StoryStatus:          record.StoryStatus,
		KeywordsStatus:       record.KeywordsStatus,
		RecommendationStatus: record.RecommendationStatus,
		Story:                record.Story.String,
		Keywords:             record.Keywords,
		ReferenceImageID:     record.ReferenceImageID.String,
		RecommendationError:  record.RecommendationError.String,
		CreatedAt:            record.CreatedAt,
		UpdatedAt:            record.UpdatedAt,
	}
	for _, image := range images {
		resp.Images = append(resp.Images, models.RecordImageResponse{
			ImageID: image.ImageID.String(),
			Seq:     image.Seq,
			URL:     image.URL,
		})
	}
	return resp
}
