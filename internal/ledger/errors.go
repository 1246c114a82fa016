package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the task or reward id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance indicates a redemption costs more than the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMalformedInput indicates an imported snapshot or catalogue could not be used.
	ErrMalformedInput = errors.New("malformed data")

	// ErrInvalidInput indicates a field failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned by mutating operations after Close.
	ErrClosed = errors.New("store closed")
)

// InsufficientBalanceError reports the balance and cost of a rejected redemption.
type InsufficientBalanceError struct {
	Reward  string
	Balance int
	Cost    int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %q: have %d, need %d", e.Reward, e.Balance, e.Cost)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
