package services_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"layerminder-backend/internal/services"
)

// memoryCreditStore mimics the conditional-update semantics of the database
// store: the sufficiency check and the decrement happen under one lock.
type memoryCreditStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	err      error
}

func newMemoryCreditStore() *memoryCreditStore {
	return &memoryCreditStore{balances: make(map[uuid.UUID]int)}
}

func (s *memoryCreditStore) CreditBalance(userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.balances[userID], nil
}

func (s *memoryCreditStore) ConsumeCredits(userID uuid.UUID, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.balances[userID] < amount {
		return false, nil
	}
	s.balances[userID] -= amount
	return true, nil
}

func TestCreditLedger_GetBalance(t *testing.T) {
	store := newMemoryCreditStore()
	userID := uuid.New()
	store.balances[userID] = 7

	ledger := services.NewCreditLedger(store)

	assert.Equal(t, 7, ledger.GetBalance(userID))
}

func TestCreditLedger_GetBalance_UnknownUser(t *testing.T) {
	ledger := services.NewCreditLedger(newMemoryCreditStore())

	assert.Equal(t, 0, ledger.GetBalance(uuid.New()))
}

func TestCreditLedger_GetBalance_StorageError(t *testing.T) {
	store := newMemoryCreditStore()
	store.err = assert.AnError

	ledger := services.NewCreditLedger(store)

	// Read failures degrade to zero rather than erroring the caller.
	assert.Equal(t, 0, ledger.GetBalance(uuid.New()))
}

func TestCreditLedger_TryConsume(t *testing.T) {
	store := newMemoryCreditStore()
	userID := uuid.New()
	store.balances[userID] = 3

	ledger := services.NewCreditLedger(store)

	ok, err := ledger.TryConsume(userID, 2, "image_generation")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, ledger.GetBalance(userID))
}

func TestCreditLedger_TryConsume_Insufficient(t *testing.T) {
	store := newMemoryCreditStore()
	userID := uuid.New()
	store.balances[userID] = 1

	ledger := services.NewCreditLedger(store)

	ok, err := ledger.TryConsume(userID, 2, "image_generation")
	require.NoError(t, err)
	assert.False(t, ok)
	// An insufficient balance is never partially decremented.
	assert.Equal(t, 1, ledger.GetBalance(userID))
}

func TestCreditLedger_TryConsume_StorageError(t *testing.T) {
	store := newMemoryCreditStore()
	store.err = assert.AnError

	ledger := services.NewCreditLedger(store)

	ok, err := ledger.TryConsume(uuid.New(), 1, "image_generation")
	assert.False(t, ok)
	assert.ErrorIs(t, err, services.ErrStorageUnavailable)
}

func TestCreditLedger_TryConsume_Concurrent(t *testing.T) {
	store := newMemoryCreditStore()
	userID := uuid.New()
	store.balances[userID] = 1

	ledger := services.NewCreditLedger(store)

	const attempts = 16
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.TryConsume(userID, 1, "image_generation")
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}

	// Exactly one racer may win a balance of one.
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, ledger.GetBalance(userID))
}
