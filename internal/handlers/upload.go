package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"layerminder-backend/internal/middleware"
	"layerminder-backend/internal/models"
	"layerminder-backend/internal/supabase"
)

type UploadHandler struct {
	storageClient *supabase.StorageClient
}

func NewUploadHandler(storageClient *supabase.StorageClient) *UploadHandler {
	return &UploadHandler{storageClient: storageClient}
}

// GetUploadURL godoc
// @Summary     Issue a presigned upload URL
// @Description Returns a short-lived URL the client can PUT an input image to, plus the file key to reference in POST /generate.
// @Tags        upload
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.PresignedUploadRequest true "MIME type of the file to upload"
// @Success     200 {object} models.PresignedUploadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /upload-url [post]
func (h *UploadHandler) GetUploadURL(c *gin.Context) {
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

	var req models.PresignedUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	// "image/png" -> "png"
	fileExt := req.FileType
	if idx := strings.LastIndex(fileExt, "/"); idx != -1 {
		fileExt = fileExt[idx+1:]
	}
	if fileExt == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid file type"})
		return
	}

	uploadURL, fileKey, err := h.storageClient.CreateSignedUploadURL(userID, fileExt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create upload url",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.PresignedUploadResponse{
		UploadURL: uploadURL,
		FileKey:   fileKey,
	})
}
