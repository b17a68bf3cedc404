package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"layerminder-backend/internal/middleware"
	"layerminder-backend/internal/models"
	"layerminder-backend/internal/services"
	"layerminder-backend/internal/supabase"
)

type GenerateHandler struct {
	dbClient     *supabase.DatabaseClient
	ledger       *services.CreditLedger
	orchestrator *services.PipelineOrchestrator
}

func NewGenerateHandler(dbClient *supabase.DatabaseClient, ledger *services.CreditLedger, orchestrator *services.PipelineOrchestrator) *GenerateHandler {
	return &GenerateHandler{
		dbClient:     dbClient,
		ledger:       ledger,
		orchestrator: orchestrator,
	}
}

// Generate godoc
// @Summary     Start an image generation pipeline
// @Description Consumes one credit, creates a generation record and runs the synthesis/story/recommendation pipeline in the background. Progress is observable via GET /stream/{record_id}.
// @Tags        generation
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateRequest true "Input image keys and optional style keyword"
// @Success     202 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.InsufficientCreditsResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
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

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid session id"})
		return
	}

	// Check credits before touching anything else
	currentCredits := h.ledger.GetBalance(userID)
	if currentCredits < 1 {
		c.JSON(http.StatusPaymentRequired, models.InsufficientCreditsResponse{
			Error:           "insufficient_credits",
			Message:         "You don't have enough credits to generate images.",
			CurrentCredits:  currentCredits,
			RequiredCredits: 1,
		})
		return
	}

	// Verify session belongs to user
	session, err := h.dbClient.GetSession(sessionID)
	if err != nil || session.UserID != userID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}

	// Consume the credit; a concurrent request may have depleted the
	// balance since the pre-check, in which case this returns false.
	consumed, err := h.ledger.TryConsume(userID, 1,
		fmt.Sprintf("Image generation for session %s", sessionID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "credit storage unavailable",
			Message: err.Error(),
		})
		return
	}
	if !consumed {
		c.JSON(http.StatusPaymentRequired, models.InsufficientCreditsResponse{
			Error:           "credit_consumption_failed",
			Message:         "Failed to consume credit. Please try again.",
			CurrentCredits:  h.ledger.GetBalance(userID),
			RequiredCredits: 1,
		})
		return
	}

	recordID := uuid.New()
	record, err := h.dbClient.CreateRecord(recordID, sessionID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create record",
			Message: err.Error(),
		})
		return
	}

	// The pipeline runs detached from this request; it has no
	// cancellation input once started.
	go h.orchestrator.Run(context.Background(), recordID, userID, req.InputImageKeys, req.Keyword)

	c.JSON(http.StatusAccepted, models.GenerateResponse{
		RecordID:    recordID.String(),
		ImageStatus: record.ImageStatus,
	})
}
