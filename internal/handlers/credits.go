package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"layerminder-backend/internal/middleware"
	"layerminder-backend/internal/models"
	"layerminder-backend/internal/services"
)

type CreditsHandler struct {
	ledger *services.CreditLedger
}

func NewCreditsHandler(ledger *services.CreditLedger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

// GetBalance godoc
// @Summary     Get current credit balance
// @Description Retrieve the current credit balance for the authenticated user.
// @Tags        credits
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.CreditBalanceResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /credits/balance [get]
func (h *CreditsHandler) GetBalance(c *gin.Context) {
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

	c.JSON(http.StatusOK, models.CreditBalanceResponse{
		UserID:  userID.String(),
		Credits: h.ledger.GetBalance(userID),
	})
}
