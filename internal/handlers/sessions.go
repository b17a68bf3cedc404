package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"layerminder-backend/internal/middleware"
	"layerminder-backend/internal/models"
	"layerminder-backend/internal/supabase"
)

type SessionsHandler struct {
	dbClient *supabase.DatabaseClient
}

func NewSessionsHandler(dbClient *supabase.DatabaseClient) *SessionsHandler {
	return &SessionsHandler{dbClient: dbClient}
}

// CreateSession godoc
// @Summary     Create a history session
// @Description Creates a new session to group generation records under.
// @Tags        history
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SessionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /history/sessions [post]
func (h *SessionsHandler) CreateSession(c *gin.Context) {
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

	session, err := h.dbClient.CreateSession(uuid.New(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create session",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.SessionResponse{
		SessionID: session.SessionID.String(),
		UserID:    session.UserID.String(),
		CreatedAt: session.CreatedAt,
	})
}

// ListSessions godoc
// @Summary     List history sessions
// @Description Lists the authenticated user's sessions, oldest first.
// @Tags        history
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SessionListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /history/sessions [get]
func (h *SessionsHandler) ListSessions(c *gin.Context) {
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

	sessions, err := h.dbClient.ListSessions(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list sessions",
			Message: err.Error(),
		})
		return
	}

	response := models.SessionListResponse{Sessions: make([]models.SessionResponse, 0, len(sessions))}
	for _, session := range sessions {
		response.Sessions = append(response.Sessions, models.SessionResponse{
			SessionID: session.SessionID.String(),
			UserID:    session.UserID.String(),
			CreatedAt: session.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, response)
}
