package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// ErrStorageUnavailable distinguishes a credit-store failure from an
// insufficient balance, so callers can report the true cause.
var ErrStorageUnavailable = errors.New("credit storage unavailable")

// CreditStore is the storage contract the ledger runs on. ConsumeCredits
// must perform the sufficiency check and the decrement as one atomic
// conditional update: concurrent calls against a balance of exactly `amount`
// may never both succeed.
type CreditStore interface {
	CreditBalance(userID uuid.UUID) (int, error)
	ConsumeCredits(userID uuid.UUID, amount int) (bool, error)
}

// CreditLedger gates generation requests on a per-user consumable balance.
// It is the only writer of credit balances.
type CreditLedger struct {
	store CreditStore
}

func NewCreditLedger(store CreditStore) *CreditLedger {
	return &CreditLedger{store: store}
}

// GetBalance returns the user's balance, 0 for unknown users. It never
// errors the caller; a storage failure is logged and reads as 0.
func (l *CreditLedger) GetBalance(userID uuid.UUID) int {
	balance, err := l.store.CreditBalance(userID)
	if err != nil {
		log.Printf("[CreditLedger] Error getting balance for user %s: %v", userID, err)
		return 0
	}
	return balance
}

// TryConsume atomically decrements the balance by amount if sufficient.
// It returns false with no side effects when the balance is short, and
// ErrStorageUnavailable when the store itself fails.
func (l *CreditLedger) TryConsume(userID uuid.UUID, amount int, reason string) (bool, error) {
	ok, err := l.store.ConsumeCredits(userID, amount)
	if err != nil {
		log.Printf("[CreditLedger] Error consuming credits for user %s: %v", userID, err)
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ok {
		log.Printf("[CreditLedger] Insufficient credits for user %s. Requested: %d (%s)", userID, amount, reason)
	}
	return ok, nil
}
