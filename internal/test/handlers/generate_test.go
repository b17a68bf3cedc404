package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"layerminder-backend/internal/handlers"
	"layerminder-backend/internal/middleware"
	"layerminder-backend/internal/services"
	"layerminder-backend/internal/supabase"
)

type stubCreditStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
}

func (s *stubCreditStore) CreditBalance(userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *stubCreditStore) ConsumeCredits(userID uuid.UUID, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[userID] < amount {
		return false, nil
	}
	s.balances[userID] -= amount
	return true, nil
}

func generateRouter(userID string, ledger *services.CreditLedger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewGenerateHandler(&supabase.DatabaseClient{}, ledger, nil)

	router := gin.New()
	router.POST("/generate", func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.UserIDKey, userID)
		}
		handler.Generate(c)
	})
	return router
}

func postGenerate(router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/generate", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerate_MissingUserID(t *testing.T) {
	ledger := services.NewCreditLedger(&stubCreditStore{balances: map[uuid.UUID]int{}})
	router := generateRouter("", ledger)

	w := postGenerate(router, gin.H{})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerate_NoInputImages(t *testing.T) {
	userID := uuid.New()
	ledger := services.NewCreditLedger(&stubCreditStore{balances: map[uuid.UUID]int{userID: 5}})
	router := generateRouter(userID.String(), ledger)

	w := postGenerate(router, gin.H{
		"session_id":       uuid.New().String(),
		"input_image_keys": []string{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_TooManyInputImages(t *testing.T) {
	userID := uuid.New()
	ledger := services.NewCreditLedger(&stubCreditStore{balances: map[uuid.UUID]int{userID: 5}})
	router := generateRouter(userID.String(), ledger)

	w := postGenerate(router, gin.H{
		"session_id":       uuid.New().String(),
		"input_image_keys": []string{"a.png", "b.png", "c.png"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_InsufficientCredits(t *testing.T) {
	userID := uuid.New()
	ledger := services.NewCreditLedger(&stubCreditStore{balances: map[uuid.UUID]int{}})
	router := generateRouter(userID.String(), ledger)

	w := postGenerate(router, gin.H{
		"session_id":       uuid.New().String(),
		"input_image_keys": []string{"a.png"},
	})

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient_credits")
}

func TestGenerate_InvalidSessionID(t *testing.T) {
	userID := uuid.New()
	ledger := services.NewCreditLedger(&stubCreditStore{balances: map[uuid.UUID]int{userID: 5}})
	router := generateRouter(userID.String(), ledger)

	w := postGenerate(router, gin.H{
		"session_id":       "not-a-uuid",
		"input_image_keys": []string{"a.png"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
